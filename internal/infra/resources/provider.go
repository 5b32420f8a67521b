package resources

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"kredilakay/internal/domain"
)

const (
	LogoImage         = "images/logo.png"
	SecuritySealImage = "images/security_seal.png"
)

//go:embed assets
var embedded embed.FS

// Provider resolves named static resources (templates, images).
type Provider interface {
	Open(name string) ([]byte, error)
}

// Layered looks a resource up in each layer in turn. The first layer that
// has the file wins.
type Layered struct {
	layers []fs.FS
}

// Embedded returns a provider over the built-in templates and images.
func Embedded() *Layered {
	sub, err := fs.Sub(embedded, "assets")
	if err != nil {
		panic(err)
	}
	return &Layered{layers: []fs.FS{sub}}
}

// WithOverrides returns a provider that prefers files from dir and falls
// back to the embedded defaults. An empty dir yields the defaults only.
func WithOverrides(dir string) (*Layered, error) {
	base := Embedded()
	if dir == "" {
		return base, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("resource dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("resource dir %s is not a directory", dir)
	}
	return &Layered{layers: append([]fs.FS{os.DirFS(dir)}, base.layers...)}, nil
}

func FromFS(layers ...fs.FS) *Layered {
	return &Layered{layers: layers}
}

func (l *Layered) Open(name string) ([]byte, error) {
	clean := path.Clean(name)
	if !fs.ValidPath(clean) {
		return nil, fmt.Errorf("%w: invalid resource name %q", domain.ErrMissingResource, name)
	}
	for _, layer := range l.layers {
		data, err := fs.ReadFile(layer, clean)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read resource %s: %w", clean, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrMissingResource, clean)
}

func TemplateName(kind domain.DocumentKind) string {
	return "templates/" + string(kind) + ".md"
}
