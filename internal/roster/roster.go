// Package roster keeps the local student table in step with the university registry.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"libreserve-backend/config"
	"libreserve-backend/internal/model"
	"libreserve-backend/internal/parse"
)

// StudentUpserter persists roster rows without touching account lock state.
type StudentUpserter interface {
	UpsertStudents(ctx context.Context, students []model.Student) error
}

// Entry is one student as the registry reports it.
type Entry struct {
	MatricNumber string `json:"matricNumber"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Faculty      string `json:"faculty"`
	Level        string `json:"level"`
}

// Response models one page of the registry's student listing.
type Response struct {
	Code int `json:"code"`
	Data struct {
		Page     int     `json:"page"`
		PageSize int     `json:"pageSize"`
		Total    int     `json:"total"`
		Items    []Entry `json:"items"`
	} `json:"data"`
}

// Service periodically pulls the roster and upserts it.
type Service struct {
	cfg    config.RosterConfig
	store  StudentUpserter
	client *http.Client
	logger *zap.Logger
}

// NewService creates and initializes a new roster sync service.
func NewService(cfg config.RosterConfig, store StudentUpserter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	connect := time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
	read := time.Duration(cfg.ReadTimeoutSeconds) * time.Second
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: connect}).DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
	}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			logger.Warn("invalid roster proxy URL, not using a proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &Service{
		cfg:   cfg,
		store: store,
		client: &http.Client{
			Transport: transport,
			Timeout:   connect + read,
		},
		logger: logger,
	}
}

// Run syncs once immediately and then every configured interval until ctx ends.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled || s.cfg.UniversityURL == "" {
		s.logger.Info("roster sync is disabled")
		return
	}
	s.logger.Info("starting roster sync", zap.Duration("interval", s.cfg.Interval))

	s.syncAndLog(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("roster sync shutting down")
			return
		case <-timer.C:
			s.syncAndLog(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) syncAndLog(ctx context.Context) {
	n, err := s.SyncOnce(ctx)
	if err != nil {
		s.logger.Error("roster sync failed", zap.Int("upserted", n), zap.Error(err))
		return
	}
	s.logger.Info("roster sync finished", zap.Int("upserted", n))
}

// SyncOnce fetches every page and upserts what it got. A fetch error after
// some pages still upserts those pages; nothing is ever deleted.
func (s *Service) SyncOnce(ctx context.Context) (int, error) {
	var students []model.Student
	var fetchErr error

	total := 1
	pageSize := s.cfg.PageSize
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			fetchErr = fmt.Errorf("page %d: %w", page, err)
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		for _, e := range resp.Data.Items {
			matric, err := parse.MatricNumber(e.MatricNumber)
			if err != nil {
				s.logger.Warn("skipping roster entry", zap.String("matric_number", e.MatricNumber), zap.Error(err))
				continue
			}
			students = append(students, model.Student{
				MatricNumber: matric,
				FullName:     e.FullName,
				Email:        e.Email,
				Faculty:      e.Faculty,
				Level:        e.Level,
				NotLocked:    true,
			})
		}
		s.logger.Debug("fetched roster page", zap.Int("page", page), zap.Int("total", total), zap.Int("so_far", len(students)))
	}

	if len(students) == 0 {
		return 0, fetchErr
	}
	if err := s.store.UpsertStudents(ctx, students); err != nil {
		return 0, errors.Join(fetchErr, fmt.Errorf("upsert students: %w", err))
	}
	return len(students), fetchErr
}

func (s *Service) fetchPage(ctx context.Context, page int) (*Response, error) {
	u, err := url.Parse(s.cfg.UniversityURL)
	if err != nil {
		return nil, fmt.Errorf("invalid universityUrl: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(s.cfg.PageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roster response: %w", err)
	}
	if apiResp.Code != 0 {
		return nil, fmt.Errorf("registry returned non-zero application code: %d", apiResp.Code)
	}
	return &apiResp, nil
}
