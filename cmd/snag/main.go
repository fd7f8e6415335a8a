package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"snag/internal/services"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err == nil {
		return
	}
	// A job stopped on request is a normal outcome, not a failure.
	if isCanceledRPC(err) {
		fmt.Fprintln(os.Stderr, "canceled")
		return
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}

// isCanceledRPC recognizes a user-initiated stop in the flattened RPC error
// string. net/rpc carries errors as text, so the classification code is
// matched by its leading position.
func isCanceledRPC(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), string(services.CodeDownloadCanceled))
}
