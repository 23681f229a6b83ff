package web

import (
	"embed"
	"io/fs"
	"os"

	"emperror.dev/errors"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// FS returns the template and static file systems. If folder is set, files
// are served from folder/templates and folder/static instead of the
// embedded copies.
func FS(folder string) (templates fs.FS, static fs.FS, err error) {
	if folder != "" {
		root := os.DirFS(folder)
		if templates, err = fs.Sub(root, "templates"); err != nil {
			return nil, nil, errors.Wrapf(err, "cannot open %s/templates", folder)
		}
		if static, err = fs.Sub(root, "static"); err != nil {
			return nil, nil, errors.Wrapf(err, "cannot open %s/static", folder)
		}
		return templates, static, nil
	}
	if templates, err = fs.Sub(templateFS, "templates"); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if static, err = fs.Sub(staticFS, "static"); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return templates, static, nil
}
