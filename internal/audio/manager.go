package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	audioManager *Manager
	managerOnce  sync.Once
)

// Manager 管理 PortAudio 的初始化和终止 (引用计数)
type Manager struct {
	mu          sync.Mutex
	initialized bool
	refCount    int

	initialize func() error
	terminate  func() error
}

// GetManager 获取全局音频管理器实例
func GetManager() *Manager {
	managerOnce.Do(func() {
		audioManager = newManager(portaudio.Initialize, portaudio.Terminate)
	})
	return audioManager
}

func newManager(initialize, terminate func() error) *Manager {
	return &Manager{initialize: initialize, terminate: terminate}
}

// Acquire 第一次调用时初始化 PortAudio
func (m *Manager) Acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		if err := m.initialize(); err != nil {
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
		m.initialized = true
	}

	m.refCount++
	return nil
}

// Release 最后一个使用者释放时终止 PortAudio
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refCount > 0 {
		m.refCount--
	}

	if m.refCount == 0 && m.initialized {
		if err := m.terminate(); err != nil {
			return fmt.Errorf("failed to terminate PortAudio: %w", err)
		}
		m.initialized = false
	}
	return nil
}

func (m *Manager) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// Probe initializes PortAudio once and reports the default devices.
func (m *Manager) Probe() (input, output string, err error) {
	if err := m.Acquire(); err != nil {
		return "", "", err
	}
	defer m.Release()

	in, err := portaudio.DefaultInputDevice()
	if err != nil {
		return "", "", fmt.Errorf("no default input device: %w", err)
	}
	out, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return in.Name, "", fmt.Errorf("no default output device: %w", err)
	}
	return in.Name, out.Name, nil
}
