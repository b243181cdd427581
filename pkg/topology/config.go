// Package topology parses the external-facing JSON configuration
// documents of §6: the client/server VM topology and the storage device
// profile. Request traces are parsed by pkg/curve.
package topology

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ClientEntry describes one tenant workload in a topology document.
type ClientEntry struct {
	Name        string  `json:"name"`
	SLO         float64 `json:"SLO"`
	Trace       string  `json:"trace"`
	StorageOnly bool    `json:"storageOnly,omitempty"`
	NetworkOnly bool    `json:"networkOnly,omitempty"`
}

// ClientVM is one client-side VM, addressable as ClientHost/ClientVM.
type ClientVM struct {
	ClientHost string `json:"clientHost"`
	ClientVM   string `json:"clientVM"`
}

// ServerVM is one server-side VM, addressable as ServerHost/ServerVM.
type ServerVM struct {
	ServerHost string `json:"serverHost"`
	ServerVM   string `json:"serverVM"`
}

// Config is a parsed topology document.
type Config struct {
	Clients    []ClientEntry `json:"clients"`
	ClientVMs  []ClientVM    `json:"clientVMs"`
	ServerVMs  []ServerVM    `json:"serverVMs"`
	AddrPrefix string        `json:"addrPrefix"`
	Enforce    bool          `json:"enforce,omitempty"`
}

// ParseConfig decodes a topology document from r.
func ParseConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse topology config")
	}
	return &cfg, nil
}

// LoadConfig reads and parses a topology document from path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open topology config %q", path)
	}
	defer f.Close()
	return ParseConfig(f)
}

// Addr synthesizes the enforcer-visible address of a host/vm pair, per
// §6: "<prefix>-<host>vm<vm>".
func Addr(prefix, host, vm string) string {
	return fmt.Sprintf("%s-%svm%s", prefix, host, vm)
}
