// Package config provides configuration loading and path resolution for
// licensebridge.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later ones winning:
//
//  1. Default values (Default)
//  2. A YAML file: $LICENSEBRIDGE_CONFIG_FILE, ./config.yaml,
//     ./configs/config.yaml or config.yaml next to the executable
//  3. A .env file in the working directory
//  4. Environment variables
//
// # Environment Variables
//
// Variables follow the pattern LICENSEBRIDGE_<SECTION>_<FIELD>:
//
//	LICENSEBRIDGE_SERVER_PORT=7878
//	LICENSEBRIDGE_BACKEND_ADB_PATH=/opt/android/platform-tools/adb
//	LICENSEBRIDGE_BACKEND_ANDROID_REMOTE_PATHS=/sdcard/a/,/sdcard/b/
//	LICENSEBRIDGE_BACKEND_BATCH_CONCURRENCY=2
//	LICENSEBRIDGE_LEDGER_SHEET_ID=1AbC...
//	LICENSEBRIDGE_LOGGING_LEVEL=debug
//
// # Path Management
//
// Paths resolves the directory layout relative to the executable:
//
//	paths, err := config.GetPaths()
//	adb := paths.ADBExecutable // <exe dir>/platform-tools/adb[.exe]
//
// # Validation
//
// Load validates struct tags with go-playground/validator and checks the
// cross-field rules (a key source must exist, a sheet id needs credentials).
package config
