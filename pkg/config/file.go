package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/powerlab/wattlog/pkg/utils/ptr"
)

var defaultFileConfig = &RawFileConfig{
	WindowSeconds:      ptr.To(60),
	RingCapacity:       ptr.To(1024),
	LogDir:             ptr.To("/var/log/wattlog"),
	SampleRateHint:     ptr.To(10.0),
	ListenAddress:      ptr.To(""),
	AllowNonRootAccess: ptr.To(false),
}

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

type RawFileConfig struct {
	WindowSeconds      *int     `json:"windowSeconds,omitempty"`
	RingCapacity       *int     `json:"ringCapacity,omitempty"`
	LogDir             *string  `json:"logDir,omitempty"`
	SampleRateHint     *float64 `json:"sampleRateHint,omitempty"`
	ListenAddress      *string  `json:"listenAddress,omitempty"`
	AllowNonRootAccess *bool    `json:"allowNonRootAccess,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	return &RawFileConfig{
		WindowSeconds:      ptr.To(c.WindowSeconds()),
		RingCapacity:       ptr.To(c.RingCapacity()),
		LogDir:             ptr.To(c.LogDir()),
		SampleRateHint:     ptr.To(c.SampleRateHint()),
		ListenAddress:      ptr.To(c.ListenAddress()),
		AllowNonRootAccess: ptr.To(c.AllowNonRootAccess()),
	}, nil
}

// orDefault resolves a pointer field against its default.
func orDefault[T any](v, def *T) T {
	if v != nil {
		return *v
	}
	return *def
}

func (f *File) WindowSeconds() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return orDefault(f.c.WindowSeconds, defaultFileConfig.WindowSeconds)
}

func (f *File) RingCapacity() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.RingCapacity != nil {
		return *f.c.RingCapacity
	}

	// Keep at least two windows' worth of live samples at the hinted rate.
	hint := orDefault(f.c.SampleRateHint, defaultFileConfig.SampleRateHint)
	if derived := int(2 * hint * float64(orDefault(f.c.WindowSeconds, defaultFileConfig.WindowSeconds))); derived > *defaultFileConfig.RingCapacity {
		return derived
	}
	return *defaultFileConfig.RingCapacity
}

func (f *File) LogDir() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return orDefault(f.c.LogDir, defaultFileConfig.LogDir)
}

func (f *File) SampleRateHint() float64 {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return orDefault(f.c.SampleRateHint, defaultFileConfig.SampleRateHint)
}

func (f *File) ListenAddress() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return orDefault(f.c.ListenAddress, defaultFileConfig.ListenAddress)
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return orDefault(f.c.AllowNonRootAccess, defaultFileConfig.AllowNonRootAccess)
}

func (f *File) SetWindowSeconds(i int) {
	if f.c == nil {
		panic("config is nil")
	}
	if i <= 0 {
		panic("window seconds must be positive")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.WindowSeconds = &i
}

func (f *File) SetLogDir(dir string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.LogDir = &dir
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"windowSeconds":      f.WindowSeconds(),
		"ringCapacity":       f.RingCapacity(),
		"logDir":             f.LogDir(),
		"sampleRateHint":     f.SampleRateHint(),
		"listenAddress":      f.ListenAddress(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
	}
}
