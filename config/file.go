package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the optional YAML overlay. Any field left out keeps the value
// resolved from the environment.
type File struct {
	AllowedIPs    []string      `yaml:"allowed_ips"`
	WebAllowedIPs []string      `yaml:"web_allowed_ips"`
	HostIngress   []IngressRule `yaml:"host_ingress"`
	Stacks        []string      `yaml:"stacks"`
	Database      struct {
		Extensions []string `yaml:"extensions"`
		Schemas    []string `yaml:"schemas"`
	} `yaml:"database"`
}

// ApplyFile reads the YAML file at path and overlays it onto c.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading config file %s", path)
	}
	return errors.Wrapf(c.ApplyYAML(data), "config file %s", path)
}

// ApplyYAML overlays a YAML document onto c.
func (c *Config) ApplyYAML(data []byte) error {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return errors.Wrap(err, "decoding yaml")
	}

	var err error
	if f.AllowedIPs != nil {
		if c.AllowedIPs, err = NormalizeCIDRs(f.AllowedIPs); err != nil {
			return errors.Wrap(err, "allowed_ips")
		}
	}
	if f.WebAllowedIPs != nil {
		if c.WebAllowedIPs, err = NormalizeCIDRs(f.WebAllowedIPs); err != nil {
			return errors.Wrap(err, "web_allowed_ips")
		}
	}
	if f.HostIngress != nil {
		if err := validateIngress(f.HostIngress); err != nil {
			return errors.Wrap(err, "host_ingress")
		}
		c.HostIngress = f.HostIngress
	}
	if f.Stacks != nil {
		for _, id := range f.Stacks {
			if !known(id) {
				return errors.Errorf("stacks: unknown stack %q", id)
			}
		}
		c.Stacks = f.Stacks
	}
	if f.Database.Extensions != nil {
		c.RDS.Extensions = f.Database.Extensions
	}
	if f.Database.Schemas != nil {
		c.RDS.Schemas = f.Database.Schemas
	}
	return nil
}
