package http

import (
	"errors"

	apierrors "github.com/imagecached/imagecached/pkg/errors"
)

func MakeAPINotFound(path string) *apierrors.Error {
	return &apierrors.Error{
		Type: apierrors.Missing,
		Help: `The API endpoint requested is not supported by this server.

This indicates that your client (probably imagecachectl) is either out
of date, or faulty. If the problem persists with a matching client,
please file an issue at

    https://github.com/imagecached/imagecached/issues

mentioning what you were attempting to do, and include this path:

    ` + path + `
`,
		Err: errors.New("API endpoint not found"),
	}
}
