package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPermalinkFormats(t *testing.T) {
	table := NewHostTable()

	tests := []struct {
		name      string
		sourceURL string
		want      string
	}{
		{
			"github",
			"https://github.com/alice/tool.git",
			"https://github.com/alice/tool/blob/abc123/src/main.go#L42",
		},
		{
			"gitlab",
			"https://gitlab.com/alice/tool.git",
			"https://gitlab.com/alice/tool/-/blob/abc123/src/main.go#L42",
		},
		{
			"bitbucket",
			"https://bitbucket.org/alice/tool.git",
			"https://bitbucket.org/alice/tool/src/abc123/src/main.go#lines-42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.Permalink(tt.sourceURL, "abc123", "src/main.go", 42)
			if got != tt.want {
				t.Errorf("Permalink = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPermalinkFallsBackForUnknownHost(t *testing.T) {
	table := NewHostTable()
	url := "https://git.example.com/alice/tool.git"
	if got := table.Permalink(url, "abc123", "main.go", 1); got != url {
		t.Errorf("Permalink = %q, want repository URL", got)
	}
}

func TestPermalinkFallsBackWithoutCommit(t *testing.T) {
	table := NewHostTable()
	url := "https://github.com/alice/tool.git"
	if got := table.Permalink(url, "", "main.go", 1); got != url {
		t.Errorf("Permalink = %q, want repository URL", got)
	}
}

func TestLoadHostTableMissingFile(t *testing.T) {
	table, err := LoadHostTable(filepath.Join(t.TempDir(), "hosts.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if !table.Recognized("github.com") {
		t.Error("builtin hosts missing after load")
	}
}

func TestLoadHostTableExtendsBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.yaml")
	yaml := `hosts:
  - domain: forge.internal.example
    blobPath: blob
    lineAnchor: "#L%d"
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadHostTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if !table.Recognized("forge.internal.example") {
		t.Error("declared host not recognized")
	}

	got := table.Permalink("https://forge.internal.example/a/b.git", "c0ffee", "x.go", 7)
	want := "https://forge.internal.example/a/b/blob/c0ffee/x.go#L7"
	if got != want {
		t.Errorf("Permalink = %q, want %q", got, want)
	}
}

func TestRecognized(t *testing.T) {
	table := NewHostTable()

	tests := []struct {
		domain string
		want   bool
	}{
		{"github.com", true},
		{"GitHub.com", true},
		{"git.sr.ht", true},
		{"example.com", false},
	}

	for _, tt := range tests {
		if got := table.Recognized(tt.domain); got != tt.want {
			t.Errorf("Recognized(%q) = %v, want %v", tt.domain, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/alice/tool.git", "alice/tool"},
		{"https://gitlab.com/group/sub/project.git", "sub/project"},
		{"https://github.com/", "https://github.com/"},
	}

	for _, tt := range tests {
		if got := DisplayName(tt.url); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
