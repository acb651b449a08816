package cli

import (
	"fmt"
	"os"

	"github.com/jvs-project/managedfiles/internal/home"
	"github.com/jvs-project/managedfiles/pkg/config"
	"github.com/jvs-project/managedfiles/pkg/logging"
	"github.com/jvs-project/managedfiles/pkg/managedfiles"
	"github.com/jvs-project/managedfiles/pkg/metrics"
)

func (o *globalOptions) workDir() (string, error) {
	if o.dir != "" {
		return o.dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot get current directory: %w", err)
	}
	return cwd, nil
}

// requireHome discovers the home above the working directory and loads its config.
func (o *globalOptions) requireHome() (*home.Home, *config.Config, error) {
	dir, err := o.workDir()
	if err != nil {
		return nil, nil, err
	}
	h, err := home.Discover(dir)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(h.Root)
	if err != nil {
		return nil, nil, err
	}
	return h, cfg, nil
}

// openManager opens the Manager for the discovered home. Callers must Close it.
func (o *globalOptions) openManager() (*managedfiles.Manager, *home.Home, *config.Config, error) {
	h, cfg, err := o.requireHome()
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	logging.SetGlobal(log)

	m, err := managedfiles.Open(h.Root, managedfiles.OpenOptions{
		Logger:  log,
		Metrics: metrics.Default(),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return m, h, cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	log := logging.NewLogger(level)
	log.SetFormat(logging.Format(cfg.Logging.Format))
	return log, nil
}
