package httpx

import (
	"crypto/tls"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/vacon/signaling/pkg/logger"
	"golang.org/x/crypto/acme/autocert"
)

type TLS struct {
	CertManager *autocert.Manager
}

func NewTLSConfig(host string) *TLS {
	t := TLS{
		CertManager: &autocert.Manager{
			Prompt: autocert.AcceptTOS,
			Cache:  autocert.DirCache("assets/cache"),
		},
	}
	if host != "" {
		t.CertManager.HostPolicy = autocert.HostWhitelist(host)
	}
	return &t
}

// CertReloader serves a certificate from files
// and optionally reloads it when the files change.
type CertReloader struct {
	certFile string
	keyFile  string

	mu   sync.RWMutex
	cert *tls.Certificate

	watcher *fsnotify.Watcher
	log     *logger.Logger
}

// NewCertReloader loads a key pair, keyFile may be the same
// file as certFile if it keeps both.
func NewCertReloader(certFile, keyFile string, log *logger.Logger) (*CertReloader, error) {
	if keyFile == "" {
		keyFile = certFile
	}
	r := &CertReloader{certFile: certFile, keyFile: keyFile, log: log}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CertReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()
	return nil
}

func (r *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// Watch starts watching the certificate files. Directories are watched
// instead of the files because of the atomic file replacements.
// A failed reload keeps the old certificate.
func (r *CertReloader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	files := map[string]struct{}{filepath.Clean(r.certFile): {}, filepath.Clean(r.keyFile): {}}
	for f := range files {
		if err = watcher.Add(filepath.Dir(f)); err != nil {
			_ = watcher.Close()
			return err
		}
	}
	r.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if _, ours := files[filepath.Clean(event.Name)]; !ours {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := r.reload(); err != nil {
					r.log.Warn().Err(err).Str("file", event.Name).Msg("Certificate reload failed")
					continue
				}
				r.log.Info().Str("file", event.Name).Msg("Certificate reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.log.Error().Err(err).Msg("Certificate watcher error")
			}
		}
	}()
	return nil
}

func (r *CertReloader) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}
