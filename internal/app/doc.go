// Package app wires licensebridge together and manages its lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration from defaults, YAML, .env and the environment
//  2. Initialize logging and OpenTelemetry
//  3. Create the data, log, ledger and temp directories
//  4. Open the issuance ledger (workbook, optionally Google Sheets)
//  5. Build the local backend: adb client, device code generator, codec
//  6. Wrap it in the proxy, build the tracker and workflow controller
//  7. Set up the HTTP router, websocket stream and server
//
// # Usage
//
//	a, err := app.NewApplication(ctx)
//	if err != nil {
//	    return err
//	}
//	return a.Run()
//
// The CLI uses the same wiring without serving: it calls New, drives
// a.Controller directly and finishes with a.Close.
package app
