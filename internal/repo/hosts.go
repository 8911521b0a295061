package repo

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Host describes a recognized repository host and how to render permalinks
// for it. LineAnchor receives the line number.
type Host struct {
	Domain     string `yaml:"domain"`
	BlobPath   string `yaml:"blobPath"`   // path segment between repo and commit, e.g. "blob"
	LineAnchor string `yaml:"lineAnchor"` // fmt verb applied to the line number, e.g. "#L%d"
}

// builtinHosts are always recognized. Additional hosts can be declared in a
// hosts.yaml file in the data dir.
var builtinHosts = []Host{
	{Domain: "github.com", BlobPath: "blob", LineAnchor: "#L%d"},
	{Domain: "gitlab.com", BlobPath: "-/blob", LineAnchor: "#L%d"},
	{Domain: "bitbucket.org", BlobPath: "src", LineAnchor: "#lines-%d"},
}

// HostTable resolves host recognition and permalink rendering.
type HostTable struct {
	hosts []Host
}

// NewHostTable returns a table containing only the builtin hosts.
func NewHostTable() *HostTable {
	return &HostTable{hosts: append([]Host(nil), builtinHosts...)}
}

// LoadHostTable extends the builtin table with declarations from a YAML file.
// A missing file is not an error.
func LoadHostTable(path string) (*HostTable, error) {
	t := NewHostTable()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, err
	}

	var extra struct {
		Hosts []Host `yaml:"hosts"`
	}
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	t.hosts = append(t.hosts, extra.Hosts...)
	return t, nil
}

// Lookup returns the host entry for a domain, if declared.
func (t *HostTable) Lookup(domain string) (Host, bool) {
	for _, h := range t.hosts {
		if strings.EqualFold(h.Domain, domain) {
			return h, true
		}
	}
	return Host{}, false
}

// Recognized reports whether a domain is a declared host or looks like a
// self-hosted git server.
func (t *HostTable) Recognized(domain string) bool {
	if _, ok := t.Lookup(domain); ok {
		return true
	}
	return strings.Contains(domain, "git")
}

// Permalink renders a deep link to a specific line at a specific revision.
// Hosts without a declared blob format fall back to the repository URL.
func (t *HostTable) Permalink(sourceURL, commit, filePath string, line int) string {
	base := strings.TrimSuffix(sourceURL, ".git")

	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return sourceURL
	}

	host, ok := t.Lookup(u.Host)
	if !ok || host.BlobPath == "" || commit == "" {
		return sourceURL
	}

	anchor := ""
	if host.LineAnchor != "" {
		anchor = fmt.Sprintf(host.LineAnchor, line)
	}
	return fmt.Sprintf("%s/%s/%s/%s%s", base, host.BlobPath, commit, filePath, anchor)
}

// DisplayName extracts the "owner/repo" form from a repository URL, falling
// back to the URL itself if it has no usable path.
func DisplayName(sourceURL string) string {
	base := strings.TrimSuffix(sourceURL, ".git")

	u, err := url.Parse(base)
	if err != nil {
		return sourceURL
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) >= 2 {
		return segments[len(segments)-2] + "/" + segments[len(segments)-1]
	}
	if len(segments) == 1 && segments[0] != "" {
		return segments[0]
	}
	return sourceURL
}
