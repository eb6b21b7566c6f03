package sumo

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultScenario is the single intersection scenario shipped with the repo
const DefaultScenario = "data/cross.sumocfg"

var ErrNoSumoHome = errors.New("sumo: please declare environment variable 'SUMO_HOME'")

// Config of a simulator instance
type Config struct {
	// installation root, read from SUMO_HOME when empty
	Home string
	// run sumo-gui instead of the headless binary
	GUI          bool
	ConfigFile   string
	RouteFile    string // passed with -r when set, overrides the config file routes
	TripInfoFile string // per vehicle trip statistics, disabled when empty
	Warnings     bool

	// External connects to an already running simulator on Host:Port
	// instead of launching one
	External bool
	Host     string
	Port     int // a free port is picked when 0

	ConnectRetries int
	ConnectWait    time.Duration
	// simulator random seed, not passed when 0
	Seed      int64
	ExtraArgs []string
}

func (c *Config) SetDefaults() {
	if c.Home == "" {
		c.Home = os.Getenv("SUMO_HOME")
	}
	if c.ConfigFile == "" {
		c.ConfigFile = DefaultScenario
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.ConnectRetries == 0 {
		c.ConnectRetries = 60
	}
	if c.ConnectWait == 0 {
		c.ConnectWait = 100 * time.Millisecond
	}
}

// Validate checks the startup preconditions
func (c *Config) Validate() error {
	if c.External {
		if c.Port == 0 {
			return errors.New("sumo: external simulator requires a port")
		}
		return nil
	}
	if c.Home == "" {
		return ErrNoSumoHome
	}
	return nil
}

func (c *Config) Copy() *Config {
	n := *c
	n.ExtraArgs = append([]string{}, c.ExtraArgs...)
	return &n
}

// Addr of the TraCI server
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Args builds the simulator command line, without the binary
func (c *Config) Args(port int) []string {
	args := []string{"-c", c.ConfigFile}
	if c.RouteFile != "" {
		args = append(args, "-r", c.RouteFile)
	}
	args = append(args, "--remote-port", strconv.Itoa(port))
	if !c.Warnings {
		args = append(args, "--no-warnings")
	}
	if c.TripInfoFile != "" {
		args = append(args, "--tripinfo-output", c.TripInfoFile)
	}
	if c.Seed != 0 {
		args = append(args, "--seed", strconv.FormatInt(c.Seed, 10))
	}
	args = append(args, c.ExtraArgs...)
	return args
}

// CheckBinary resolves the simulator executable: first under home/bin,
// then on PATH
func CheckBinary(home string, gui bool) (string, error) {
	name := "sumo"
	if gui {
		name = "sumo-gui"
	}
	if home != "" {
		candidate := filepath.Join(home, "bin", name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("sumo: could not find %s under %s/bin or on PATH: %w", name, home, err)
	}
	return p, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
