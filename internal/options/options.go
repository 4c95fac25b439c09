// Package options loads the selectable projects and service types offered
// by the task pane.
package options

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	appLog "timereport/internal/log"
	"timereport/internal/report"
)

// ErrLoad wraps the failure to read one of the option files.
var ErrLoad = errors.New("options: load failed")

const (
	ProjectsFile = "projets.csv"
	ServicesFile = "prestations.csv"
)

type Project struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Service struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected,omitempty"`
}

// Options are the two selection lists.
type Options struct {
	Projects []Project `json:"projects"`
	Services []Service `json:"services"`
}

// Load reads both lists from dir. A list whose file cannot be read is left
// empty; the returned error then aggregates every failure, each matching
// ErrLoad.
func Load(dir string) (Options, error) {
	var (
		opts Options
		errs *multierror.Error
	)

	if data, err := readFile(dir, ProjectsFile); err != nil {
		errs = multierror.Append(errs, err)
	} else {
		opts.Projects = parseProjects(data)
	}
	if data, err := readFile(dir, ServicesFile); err != nil {
		errs = multierror.Append(errs, err)
	} else {
		opts.Services = parseServices(data)
	}

	if err := errs.ErrorOrNil(); err != nil {
		appLog.Error("options: resource load failure", err, "dir", dir)
		return opts, err
	}
	return opts, nil
}

func readFile(dir, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, name, err)
	}
	return data, nil
}

// parseProjects reads "name;description" lines. Blank lines are skipped.
func parseProjects(data []byte) []Project {
	var out []Project
	for _, line := range lines(data) {
		name, desc, _ := strings.Cut(line, ";")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, Project{Name: name, Description: strings.TrimSpace(desc)})
	}
	return out
}

// parseServices reads one name per line. The default service type is
// preselected.
func parseServices(data []byte) []Service {
	var out []Service
	for _, line := range lines(data) {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		out = append(out, Service{Name: name, Selected: name == report.DefaultServiceType})
	}
	return out
}

func lines(data []byte) []string {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		out = append(out, strings.TrimRight(sc.Text(), "\r"))
	}
	return out
}
