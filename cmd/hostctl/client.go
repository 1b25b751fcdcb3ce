package main

import (
	"fmt"

	"github.com/hostadvisord/hostadvisord/internal/ipc"
)

// call opens one connection, invokes method, and either prints the
// result or returns the daemon's error verbatim. A transport failure
// (socket missing, daemon down) surfaces as *ipc.ConnectError; a
// method-level failure surfaces as the error text the daemon attached
// to the response. Both are plain errors from main's point of view and
// map to exit code 1 — only argError maps to exit code 2.
func call(method string, params map[string]interface{}) (interface{}, error) {
	client := ipc.NewClient(socketPath, ipc.DefaultAPIVersion)
	resp, err := client.Call(method, params)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// callAndPrint is the common RunE body for commands that just forward
// one IPC call and render its JSON result.
func callAndPrint(method string, params map[string]interface{}) error {
	result, err := call(method, params)
	if err != nil {
		return err
	}
	return printJSON(result)
}
