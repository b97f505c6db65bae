package stub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tripsuite/booking-contract-tests/servicedef"
)

const listenerTimeout = time.Second * 10

// Servers is a set of running stub services.
type Servers struct {
	servers   []*http.Server
	endpoints []servicedef.ServiceEndpoint
	errs      chan error
}

// Start serves each endpoint's stub on the host and port of its base URL, and returns once
// every one of them is accepting requests.
func (s *Stub) Start(endpoints []servicedef.ServiceEndpoint) (*Servers, error) {
	ret := &Servers{errs: make(chan error, len(endpoints))}
	for _, e := range endpoints {
		if err := ret.start(s, e); err != nil {
			_ = ret.Close()
			return nil, err
		}
	}
	return ret, nil
}

func (ss *Servers) start(s *Stub, e servicedef.ServiceEndpoint) error {
	handler, err := s.Handler(e.Name)
	if err != nil {
		return err
	}
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return fmt.Errorf("service %s: %w", e.Name, err)
	}
	listener, err := net.Listen("tcp", u.Host)
	if err != nil {
		return fmt.Errorf("service %s: %w", e.Name, err)
	}
	// port 0 picks a free port, so record the address actually used
	u.Host = listener.Addr().String()
	e.BaseURL = u.String()
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == "HEAD" {
				w.WriteHeader(200)
				return
			}
			handler.ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ss.servers = append(ss.servers, server)
	ss.endpoints = append(ss.endpoints, e)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ss.errs <- fmt.Errorf("service %s: %w", e.Name, err)
		}
	}()
	return waitUntilListening(e.BaseURL)
}

// Wait blocks until the context is done or one of the servers fails, and then stops them all.
func (ss *Servers) Wait(ctx context.Context) error {
	var err error
	select {
	case <-ctx.Done():
	case err = <-ss.errs:
	}
	if closeErr := ss.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Endpoints returns the services that are being served.
func (ss *Servers) Endpoints() []servicedef.ServiceEndpoint {
	return ss.endpoints
}

func (ss *Servers) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for _, server := range ss.servers {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// waitUntilListening polls until the server is definitely listening for requests.
func waitUntilListening(baseURL string) error {
	deadline := time.NewTimer(listenerTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Millisecond * 10)
	defer ticker.Stop()
	for {
		select {
		case <-deadline.C:
			return fmt.Errorf("could not detect stub listener at %s", baseURL)
		case <-ticker.C:
			resp, err := http.DefaultClient.Head(baseURL)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == 200 {
					return nil
				}
			}
		}
	}
}
