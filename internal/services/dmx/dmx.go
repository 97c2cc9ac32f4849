// Package dmx holds universe output buffers and transmits them over Art-Net.
package dmx

import (
	"log"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bbernstein/lacylights-patch/pkg/artnet"
)

const (
	// UniverseSize is the number of channels per DMX universe.
	UniverseSize = 512
	// MaxUniverses is the maximum number of supported universes.
	MaxUniverses = 16
)

// Service manages DMX channel values and Art-Net output.
type Service struct {
	mu sync.RWMutex

	// Channel values per universe (1-indexed universes, 0-indexed slots)
	universes map[int][]byte

	enabled          bool
	broadcastAddr    string
	port             int
	refreshRateHz    int
	idleRateHz       int
	highRateDuration time.Duration

	// Adaptive transmission rate state
	currentRate      int
	isInHighRateMode bool
	lastChangeTime   time.Time

	dirtyUniverses map[int]bool

	// Art-Net sequence number (wraps at 255)
	sequence byte

	conn *net.UDPConn

	stopChan        chan struct{}
	resetTickerChan chan struct{}
	running         bool
}

// Config holds DMX service configuration.
type Config struct {
	Enabled          bool
	BroadcastAddr    string
	Port             int
	UniverseCount    int
	RefreshRateHz    int
	IdleRateHz       int
	HighRateDuration time.Duration
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		BroadcastAddr:    "255.255.255.255",
		Port:             artnet.DefaultPort,
		UniverseCount:    4,
		RefreshRateHz:    44,
		IdleRateHz:       1,
		HighRateDuration: 2 * time.Second,
	}
}

// NewService creates a new DMX service. Zero config values fall back to defaults.
func NewService(cfg Config) *Service {
	def := DefaultConfig()
	if cfg.RefreshRateHz <= 0 {
		cfg.RefreshRateHz = def.RefreshRateHz
	}
	if cfg.IdleRateHz <= 0 {
		cfg.IdleRateHz = def.IdleRateHz
	}
	if cfg.HighRateDuration <= 0 {
		cfg.HighRateDuration = def.HighRateDuration
	}
	if cfg.Port <= 0 {
		cfg.Port = def.Port
	}
	if cfg.UniverseCount <= 0 || cfg.UniverseCount > MaxUniverses {
		cfg.UniverseCount = def.UniverseCount
	}

	s := &Service{
		universes:        make(map[int][]byte, cfg.UniverseCount),
		dirtyUniverses:   make(map[int]bool),
		enabled:          cfg.Enabled,
		broadcastAddr:    cfg.BroadcastAddr,
		port:             cfg.Port,
		refreshRateHz:    cfg.RefreshRateHz,
		idleRateHz:       cfg.IdleRateHz,
		highRateDuration: cfg.HighRateDuration,
		currentRate:      cfg.IdleRateHz,
		stopChan:         make(chan struct{}),
		resetTickerChan:  make(chan struct{}, 1),
	}

	for i := 1; i <= cfg.UniverseCount; i++ {
		s.universes[i] = make([]byte, UniverseSize)
	}

	return s
}

// Initialize opens the Art-Net socket (when enabled) and starts the transmit loop.
func (s *Service) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if s.enabled {
		if s.conn == nil {
			conn, err := s.dial(s.broadcastAddr)
			if err != nil {
				return err
			}
			s.conn = conn
		}
		log.Printf("📡 Art-Net output enabled, broadcasting to %s:%d", s.broadcastAddr, s.port)
	} else {
		log.Printf("🎭 DMX Service initialized with %d universes (simulation mode)", len(s.universes))
	}

	s.running = true
	go s.transmitLoop()

	return nil
}

func (s *Service) dial(host string) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(s.port)))
	if err != nil {
		return nil, err
	}
	return net.DialUDP("udp4", nil, addr)
}

// transmitLoop sends frames at the current adaptive rate until Stop.
func (s *Service) transmitLoop() {
	s.mu.RLock()
	lastRate := s.currentRate
	s.mu.RUnlock()
	ticker := time.NewTicker(time.Second / time.Duration(lastRate))
	defer func() { ticker.Stop() }()

	for {
		select {
		case <-s.stopChan:
			return
		case <-s.resetTickerChan:
		case <-ticker.C:
			s.processTransmission()
		}

		s.mu.RLock()
		rate := s.currentRate
		s.mu.RUnlock()
		if rate != lastRate {
			ticker.Stop()
			ticker = time.NewTicker(time.Second / time.Duration(rate))
			lastRate = rate
		}
	}
}

// processTransmission updates the rate state and sends one frame.
func (s *Service) processTransmission() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if len(s.dirtyUniverses) > 0 {
		s.lastChangeTime = now
		s.enterHighRate()
	} else if s.isInHighRateMode && now.Sub(s.lastChangeTime) > s.highRateDuration {
		s.isInHighRateMode = false
		s.currentRate = s.idleRateHz
		log.Printf("📡 DMX transmission: idle rate (%dHz)", s.idleRateHz)
	}

	if s.enabled && s.conn != nil {
		s.outputDMX()
	}
	s.dirtyUniverses = make(map[int]bool)
}

// outputDMX sends dirty universes, or every universe as keep-alive.
// Callers hold s.mu.
func (s *Service) outputDMX() {
	targets := make([]int, 0, len(s.universes))
	if len(s.dirtyUniverses) > 0 {
		for u := range s.dirtyUniverses {
			targets = append(targets, u)
		}
	} else {
		for u := range s.universes {
			targets = append(targets, u)
		}
	}
	sort.Ints(targets)

	for _, universe := range targets {
		s.sequence++
		packet := artnet.BuildDMXPacket(universe, s.universes[universe], s.sequence)
		if _, err := s.conn.Write(packet); err != nil {
			log.Printf("Art-Net send error for universe %d: %v", universe, err)
		}
	}
}

// enterHighRate switches to the active refresh rate. Callers hold s.mu.
func (s *Service) enterHighRate() {
	s.lastChangeTime = time.Now()
	if !s.isInHighRateMode {
		s.isInHighRateMode = true
		s.currentRate = s.refreshRateHz
		select {
		case s.resetTickerChan <- struct{}{}:
		default:
		}
	}
}

// markDirty flags a universe for the next frame. Callers hold s.mu.
func (s *Service) markDirty(universe int) {
	s.dirtyUniverses[universe] = true
	s.enterHighRate()
}

// SetChannelValue sets a 1-based channel in a universe. Out-of-range
// universes and channels are ignored.
func (s *Service) SetChannelValue(universe, channel int, value byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.universes[universe]
	if data == nil || channel < 1 || channel > UniverseSize {
		return
	}
	if data[channel-1] != value {
		data[channel-1] = value
		s.markDirty(universe)
	}
}

// GetChannelValue returns a 1-based channel value, or 0 when out of range.
func (s *Service) GetChannelValue(universe, channel int) byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := s.universes[universe]
	if data == nil || channel < 1 || channel > UniverseSize {
		return 0
	}
	return data[channel-1]
}

// GetUniverse returns a copy of a universe as ints, or nil if it does not exist.
func (s *Service) GetUniverse(universe int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := s.universes[universe]
	if data == nil {
		return nil
	}
	out := make([]int, UniverseSize)
	for i, v := range data {
		out[i] = int(v)
	}
	return out
}

// Blackout zeroes every universe.
func (s *Service) Blackout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for universe, data := range s.universes {
		changed := false
		for i := range data {
			if data[i] != 0 {
				data[i] = 0
				changed = true
			}
		}
		if changed {
			s.markDirty(universe)
		}
	}
}

// HasUniverse reports whether a universe is configured.
func (s *Service) HasUniverse(universe int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.universes[universe]
	return ok
}

// UniverseCount returns the number of configured universes.
func (s *Service) UniverseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.universes)
}

// IsEnabled returns whether Art-Net output is enabled.
func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// IsActive returns whether the service is in high-rate mode.
func (s *Service) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isInHighRateMode
}

// GetCurrentRate returns the current transmission rate in Hz.
func (s *Service) GetCurrentRate() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRate
}

// GetBroadcastAddress returns the Art-Net broadcast address.
func (s *Service) GetBroadcastAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.broadcastAddr
}

// ReloadBroadcastAddress reconnects to a new broadcast address, enabling
// Art-Net output if it was off.
func (s *Service) ReloadBroadcastAddress(newAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.dial(newAddress)
	if err != nil {
		return err
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.broadcastAddr = newAddress
	s.enabled = true
	log.Printf("✅ Art-Net broadcast address set to %s:%d", newAddress, s.port)
	return nil
}

// Stop halts the transmit loop, sends a final blackout frame and closes the socket.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopChan)
	s.running = false

	for universe := range s.universes {
		s.universes[universe] = make([]byte, UniverseSize)
	}
	if s.enabled && s.conn != nil {
		s.dirtyUniverses = make(map[int]bool)
		s.outputDMX()
		_ = s.conn.Close()
		s.conn = nil
	}

	log.Printf("🎭 DMX Service stopped")
}
