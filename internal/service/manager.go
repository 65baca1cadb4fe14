package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/liliang-cn/pdfqa/internal/domain"
	"github.com/liliang-cn/pdfqa/internal/settings"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Defaults        domain.BackendConfiguration
	TTL             time.Duration
	CleanupInterval time.Duration
	MaxUploadBytes  int64
}

// Manager keeps one Controller per user session. Sessions expire after
// TTL without access.
type Manager struct {
	cfg     ManagerConfig
	cache   *cache.Cache
	gateway Gateway
	journal Journal
	logger  *zap.Logger
}

// NewManager creates a new session manager
func NewManager(cfg ManagerConfig, gateway Gateway, journal Journal, logger *zap.Logger) (*Manager, error) {
	if err := settings.Validate(cfg.Defaults); err != nil {
		return nil, err
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := cache.New(cfg.TTL, cfg.CleanupInterval)
	c.OnEvicted(func(id string, _ interface{}) {
		logger.Info("Session evicted", zap.String("session_id", id))
	})

	return &Manager{
		cfg:     cfg,
		cache:   c,
		gateway: gateway,
		journal: journal,
		logger:  logger,
	}, nil
}

// Create starts a new session with its own state and configuration.
func (m *Manager) Create() (*Controller, error) {
	store, err := settings.NewStore(m.cfg.Defaults)
	if err != nil {
		return nil, err
	}

	ctrl, err := NewController(ControllerOptions{
		ID:             uuid.New().String(),
		Settings:       store,
		Gateway:        m.gateway,
		Journal:        m.journal,
		MaxUploadBytes: m.cfg.MaxUploadBytes,
		Logger:         m.logger,
	})
	if err != nil {
		return nil, err
	}

	m.cache.Set(ctrl.ID(), ctrl, cache.DefaultExpiration)
	m.logger.Info("Session created", zap.String("session_id", ctrl.ID()))
	return ctrl, nil
}

// Get returns the session's controller and extends its expiration.
func (m *Manager) Get(id string) (*Controller, error) {
	x, found := m.cache.Get(id)
	if !found {
		return nil, domain.ErrNotFound
	}
	ctrl := x.(*Controller)
	m.cache.Set(id, ctrl, cache.DefaultExpiration)
	return ctrl, nil
}

// Delete ends a session.
func (m *Manager) Delete(id string) error {
	if _, found := m.cache.Get(id); !found {
		return domain.ErrNotFound
	}
	m.cache.Delete(id)
	return nil
}

// MaxUploadBytes returns the document size limit. Zero means unlimited.
func (m *Manager) MaxUploadBytes() int64 {
	return m.cfg.MaxUploadBytes
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return m.cache.ItemCount()
}
