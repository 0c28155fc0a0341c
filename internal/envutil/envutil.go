package envutil

import (
	"os"
	"strings"
)

// EnvVar selects the runtime environment.
const EnvVar = "FIT_DRIVE_ENV"

// IsDev checks if we're running in development mode, where cookies are not
// marked Secure and internal errors are echoed to the client.
func IsDev() bool {
	env := strings.ToLower(os.Getenv(EnvVar))
	return env == "development" || env == "dev"
}
