package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gosimple/slug"
	"github.com/spf13/viper"
)

const (
	// DefaultHistoricalCutoff marks the first invoice date produced after the
	// legacy billing migration. Invoices dated earlier are never recognized.
	DefaultHistoricalCutoff = "2026-01-01"

	cutoffLayout = "2006-01-02"
)

// RecognitionConfig is the runtime policy for revenue recognition.
type RecognitionConfig struct {
	HistoricalCutoff time.Time
	// ServiceLocations maps a normalized service code to a location code.
	ServiceLocations map[string]string
}

// LocationCodeFor returns the location code mapped to a service code.
func (c RecognitionConfig) LocationCodeFor(serviceCode string) (string, bool) {
	code := NormalizeCode(serviceCode)
	if code == "" {
		return "", false
	}
	loc, ok := c.ServiceLocations[code]
	return loc, ok
}

// LocationCodes returns the distinct location codes referenced by the table.
func (c RecognitionConfig) LocationCodes() []string {
	seen := make(map[string]struct{}, len(c.ServiceLocations))
	out := make([]string, 0, len(c.ServiceLocations))
	for _, loc := range c.ServiceLocations {
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		out = append(out, loc)
	}
	return out
}

// NormalizeCode turns service and location codes into their canonical slug form.
func NormalizeCode(raw string) string {
	return slug.Make(strings.TrimSpace(raw))
}

func DefaultRecognitionConfig() RecognitionConfig {
	cutoff, _ := ParseCutoff(DefaultHistoricalCutoff)
	return RecognitionConfig{
		HistoricalCutoff: cutoff,
		ServiceLocations: map[string]string{},
	}
}

// ParseCutoff parses a YYYY-MM-DD date as midnight UTC.
func ParseCutoff(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(cutoffLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid historical cutoff %q: %w", raw, err)
	}
	return t, nil
}

// RecognitionSource supplies the current recognition policy.
type RecognitionSource interface {
	Get() RecognitionConfig
}

type RecognitionConfigHolder struct {
	current atomic.Value // holds RecognitionConfig
}

// NewStaticRecognitionConfig returns a holder that never reloads.
func NewStaticRecognitionConfig(cfg RecognitionConfig) *RecognitionConfigHolder {
	holder := &RecognitionConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewRecognitionConfigHolder(appCfg Config) (*RecognitionConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("recognition")
	v.SetConfigType("yml")
	if appCfg.RecognitionConfigPath != "" {
		v.AddConfigPath(appCfg.RecognitionConfigPath)
	}
	v.AddConfigPath("/etc/revrec")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REVREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("recognition.historical_cutoff", DefaultHistoricalCutoff)
	v.SetDefault("recognition.service_locations", map[string]string{})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg, err := decodeRecognitionConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticRecognitionConfig(cfg)

	if v.ConfigFileUsed() != "" {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeRecognitionConfig(v)
			if err != nil {
				log.Printf("[recognition-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[recognition-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *RecognitionConfigHolder) Get() RecognitionConfig {
	return h.current.Load().(RecognitionConfig)
}

func decodeRecognitionConfig(v *viper.Viper) (RecognitionConfig, error) {
	cutoff, err := ParseCutoff(v.GetString("recognition.historical_cutoff"))
	if err != nil {
		return RecognitionConfig{}, err
	}

	locations := make(map[string]string)
	for service, location := range v.GetStringMapString("recognition.service_locations") {
		serviceCode := NormalizeCode(service)
		locationCode := NormalizeCode(location)
		if serviceCode == "" || locationCode == "" {
			return RecognitionConfig{}, errors.New("recognition.service_locations cannot contain empty codes")
		}
		locations[serviceCode] = locationCode
	}

	return RecognitionConfig{
		HistoricalCutoff: cutoff,
		ServiceLocations: locations,
	}, nil
}
