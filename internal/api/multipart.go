package api

import (
	"io"
	"mime/multipart"
)

type formField struct {
	name  string
	value string
}

// multipartStream is a streamed multipart body. Close stops the writer and
// waits for it, so onSent never fires after Close returns.
type multipartStream struct {
	*io.PipeReader
	done chan struct{}
}

func (m *multipartStream) Close() error {
	err := m.PipeReader.Close()
	<-m.done
	return err
}

// multipartBody streams fields followed by one file part through a pipe so
// large recordings are never buffered in memory. onSent fires after the final
// boundary has been handed to the transport.
func multipartBody(fields []formField, fileField, fileName string, file io.Reader, onSent func()) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := writeParts(mw, fields, fileField, fileName, file)
		if err == nil {
			err = mw.Close()
		}
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
		if onSent != nil {
			onSent()
		}
	}()
	return &multipartStream{PipeReader: pr, done: done}, mw.FormDataContentType()
}

func writeParts(mw *multipart.Writer, fields []formField, fileField, fileName string, file io.Reader) error {
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile(fileField, fileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, file)
	return err
}
