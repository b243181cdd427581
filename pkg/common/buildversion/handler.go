package buildversion

import (
	"fmt"
	"net/http"
)

// Get is the default endpoint for reporting the running build version.
const Get = "/version"

// Handler returns an HTTP handler for the build-version endpoint.
func Handler(version string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, version)
	}
}
