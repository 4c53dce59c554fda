package service

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"gatekeeper/internal/domain"
)

type seedFile struct {
	Principals []seedPrincipal `yaml:"principals"`
}

type seedPrincipal struct {
	LoginName string `yaml:"loginName"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
}

// SeedFromFile creates the principals listed in a YAML file. Existing logins are
// left untouched, so the call is safe on every start.
//
//	principals:
//	  - loginName: admin
//	    password: ChangeMe1
//	    role: admin
func SeedFromFile(ctx context.Context, accounts AccountService, path string, log logrus.FieldLogger) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	created := 0
	for _, sp := range sf.Principals {
		if sp.LoginName == "" || sp.Password == "" {
			continue
		}
		role := domain.RoleStandard
		if sp.Role != "" {
			if role, err = domain.ParseRole(sp.Role); err != nil {
				return created, fmt.Errorf("seed principal %q: %w", sp.LoginName, err)
			}
		}
		ok, err := accounts.EnsurePrincipal(ctx, sp.LoginName, sp.Password, role)
		if err != nil {
			return created, fmt.Errorf("seed principal %q: %w", sp.LoginName, err)
		}
		if ok {
			created++
			if log != nil {
				log.WithFields(logrus.Fields{"login": sp.LoginName, "role": role}).Info("seeded principal")
			}
		}
	}
	return created, nil
}
