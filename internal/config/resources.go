package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"courtbook/internal/interval"
	"courtbook/internal/models"
	"courtbook/internal/slots"

	"gopkg.in/yaml.v3"
)

// OperatingHoursConfig is one opening window applied to one or more weekdays.
type OperatingHoursConfig struct {
	Days                []string `yaml:"days"`  // "mon".."sun", "weekdays", "weekend", "daily"
	Open                string   `yaml:"open"`  // "08:00"
	Close               string   `yaml:"close"` // "22:00" or "24:00"
	SlotDurationMinutes int      `yaml:"slot_duration_minutes"`
	PriceOverrideCents  *int64   `yaml:"price_override_cents,omitempty"`
}

// PolicyConfig holds booking rules. Nil fields inherit from defaults.
type PolicyConfig struct {
	PricePerHourCents         *int64 `yaml:"price_per_hour_cents,omitempty"`
	CancellationDeadlineHours *int   `yaml:"cancellation_deadline_hours,omitempty"`
	CancellationFeeCents      *int64 `yaml:"cancellation_fee_cents,omitempty"`
	MinAdvanceBookingHours    *int   `yaml:"min_advance_booking_hours,omitempty"`
	MaxAdvanceBookingDays     *int   `yaml:"max_advance_booking_days,omitempty"`
}

// ResourceConfig describes a single bookable resource.
type ResourceConfig struct {
	ID             int64                  `yaml:"id"`
	Name           string                 `yaml:"name"`
	Description    string                 `yaml:"description"`
	IsActive       *bool                  `yaml:"is_active,omitempty"`
	Policy         PolicyConfig           `yaml:"policy"`
	OperatingHours []OperatingHoursConfig `yaml:"operating_hours"`
}

// HolidayConfig closes resources for a whole day. Empty ResourceIDs means all.
type HolidayConfig struct {
	Date        string  `yaml:"date"` // "2026-01-01"
	Name        string  `yaml:"name"`
	ResourceIDs []int64 `yaml:"resource_ids,omitempty"`
}

// DefaultsConfig is applied to resources that leave fields unset.
type DefaultsConfig struct {
	Policy         PolicyConfig           `yaml:"policy"`
	OperatingHours []OperatingHoursConfig `yaml:"operating_hours"`
}

// ResourcesConfig is the root of resources.yaml.
type ResourcesConfig struct {
	Resources []ResourceConfig `yaml:"resources"`
	Defaults  DefaultsConfig   `yaml:"defaults"`
	Holidays  []HolidayConfig  `yaml:"holidays"`
}

// LoadResourcesConfig loads, validates and applies defaults to resources.yaml.
func LoadResourcesConfig(path string) (*ResourcesConfig, error) {
	if path == "" {
		path = "configs/resources.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resources config: %w", err)
	}

	return ParseResourcesConfig(data)
}

// ParseResourcesConfig is LoadResourcesConfig without the file read.
func ParseResourcesConfig(data []byte) (*ResourcesConfig, error) {
	var cfg ResourcesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse resources config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate resources config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *ResourcesConfig) Validate() error {
	if len(c.Resources) == 0 {
		return fmt.Errorf("no resources defined")
	}

	ids := make(map[int64]bool)
	names := make(map[string]bool)

	for i, r := range c.Resources {
		if r.ID <= 0 {
			return fmt.Errorf("resource[%d]: id must be positive, got %d", i, r.ID)
		}
		if ids[r.ID] {
			return fmt.Errorf("resource[%d]: duplicate id %d", i, r.ID)
		}
		ids[r.ID] = true

		if r.Name == "" {
			return fmt.Errorf("resource[%d]: name is required", i)
		}
		if names[r.Name] {
			return fmt.Errorf("resource[%d]: duplicate name '%s'", i, r.Name)
		}
		names[r.Name] = true

		if err := validatePolicy(r.Policy, fmt.Sprintf("resource[%d].policy", i)); err != nil {
			return err
		}

		for j, oh := range r.OperatingHours {
			if err := validateOperatingHours(oh, fmt.Sprintf("resource[%d].operating_hours[%d]", i, j)); err != nil {
				return err
			}
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := interval.ParseDate(h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
		for _, id := range h.ResourceIDs {
			if !ids[id] {
				return fmt.Errorf("holiday[%d]: unknown resource id %d", i, id)
			}
		}
	}

	return nil
}

// Warnings reports suspicious but accepted configuration, such as two windows
// for the same weekday on one resource.
func (c *ResourcesConfig) Warnings() []string {
	var out []string
	for _, r := range c.Resources {
		seen := make(map[time.Weekday]int)
		for _, oh := range r.OperatingHours {
			days, err := parseDays(oh.Days)
			if err != nil {
				continue
			}
			for _, d := range days {
				seen[d]++
			}
		}
		var dup []string
		for d, n := range seen {
			if n > 1 {
				dup = append(dup, d.String())
			}
		}
		sort.Strings(dup)
		if len(dup) > 0 {
			out = append(out, fmt.Sprintf("resource %d: several operating windows on %s", r.ID, strings.Join(dup, ", ")))
		}
	}
	return out
}

func validatePolicy(p PolicyConfig, prefix string) error {
	if p.PricePerHourCents != nil && *p.PricePerHourCents < 0 {
		return fmt.Errorf("%s.price_per_hour_cents cannot be negative", prefix)
	}
	if p.CancellationDeadlineHours != nil && *p.CancellationDeadlineHours < 0 {
		return fmt.Errorf("%s.cancellation_deadline_hours cannot be negative", prefix)
	}
	if p.CancellationFeeCents != nil && *p.CancellationFeeCents < 0 {
		return fmt.Errorf("%s.cancellation_fee_cents cannot be negative", prefix)
	}
	if p.MinAdvanceBookingHours != nil && *p.MinAdvanceBookingHours < 0 {
		return fmt.Errorf("%s.min_advance_booking_hours cannot be negative", prefix)
	}
	if p.MaxAdvanceBookingDays != nil && *p.MaxAdvanceBookingDays < 0 {
		return fmt.Errorf("%s.max_advance_booking_days cannot be negative", prefix)
	}
	return nil
}

func validateOperatingHours(oh OperatingHoursConfig, prefix string) error {
	days, err := parseDays(oh.Days)
	if err != nil {
		return fmt.Errorf("%s.days: %w", prefix, err)
	}
	if len(days) == 0 {
		return fmt.Errorf("%s.days is required", prefix)
	}
	if oh.PriceOverrideCents != nil && *oh.PriceOverrideCents < 0 {
		return fmt.Errorf("%s.price_override_cents cannot be negative", prefix)
	}
	rule := models.OperatingHourRule{
		DayOfWeek:           days[0],
		OpenTime:            oh.Open,
		CloseTime:           oh.Close,
		SlotDurationMinutes: oh.SlotDurationMinutes,
		IsActive:            true,
	}
	if err := slots.ValidateRule(rule); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	return nil
}

// applyDefaults fills unset policy fields and operating hours from defaults.
func (c *ResourcesConfig) applyDefaults() {
	for i := range c.Resources {
		r := &c.Resources[i]
		if r.IsActive == nil {
			active := true
			r.IsActive = &active
		}
		if len(r.OperatingHours) == 0 {
			r.OperatingHours = append([]OperatingHoursConfig(nil), c.Defaults.OperatingHours...)
		}
		d := c.Defaults.Policy
		if r.Policy.PricePerHourCents == nil {
			r.Policy.PricePerHourCents = d.PricePerHourCents
		}
		if r.Policy.CancellationDeadlineHours == nil {
			r.Policy.CancellationDeadlineHours = d.CancellationDeadlineHours
		}
		if r.Policy.CancellationFeeCents == nil {
			r.Policy.CancellationFeeCents = d.CancellationFeeCents
		}
		if r.Policy.MinAdvanceBookingHours == nil {
			r.Policy.MinAdvanceBookingHours = d.MinAdvanceBookingHours
		}
		if r.Policy.MaxAdvanceBookingDays == nil {
			r.Policy.MaxAdvanceBookingDays = d.MaxAdvanceBookingDays
		}
	}
}

// Resource converts the entry into its stored form.
func (r ResourceConfig) Resource() models.Resource {
	res := models.Resource{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive == nil || *r.IsActive,
	}
	if p := r.Policy.PricePerHourCents; p != nil {
		res.PricePerHourCents = *p
	}
	if p := r.Policy.CancellationDeadlineHours; p != nil {
		res.CancellationDeadlineHours = *p
	}
	if p := r.Policy.CancellationFeeCents; p != nil {
		res.CancellationFeeCents = *p
	}
	if p := r.Policy.MinAdvanceBookingHours; p != nil {
		res.MinAdvanceBookingHours = *p
	}
	if p := r.Policy.MaxAdvanceBookingDays; p != nil {
		res.MaxAdvanceBookingDays = *p
	}
	return res
}

// Rules expands the operating windows into one rule per weekday, in file order.
func (r ResourceConfig) Rules() []models.OperatingHourRule {
	var out []models.OperatingHourRule
	for _, oh := range r.OperatingHours {
		days, err := parseDays(oh.Days)
		if err != nil {
			continue
		}
		for _, d := range days {
			out = append(out, models.OperatingHourRule{
				ResourceID:          r.ID,
				DayOfWeek:           d,
				OpenTime:            oh.Open,
				CloseTime:           oh.Close,
				SlotDurationMinutes: oh.SlotDurationMinutes,
				PriceOverrideCents:  oh.PriceOverrideCents,
				IsActive:            true,
			})
		}
	}
	return out
}

// Closures lists the holidays that apply to resourceID.
func (c *ResourcesConfig) Closures(resourceID int64) []models.Closure {
	var out []models.Closure
	for _, h := range c.Holidays {
		if len(h.ResourceIDs) > 0 && !containsID(h.ResourceIDs, resourceID) {
			continue
		}
		d, err := interval.ParseDate(h.Date)
		if err != nil {
			continue
		}
		out = append(out, models.Closure{ResourceID: resourceID, Date: d, Reason: h.Name})
	}
	return out
}

var dayNames = map[string][]time.Weekday{
	"sun":      {time.Sunday},
	"mon":      {time.Monday},
	"tue":      {time.Tuesday},
	"wed":      {time.Wednesday},
	"thu":      {time.Thursday},
	"fri":      {time.Friday},
	"sat":      {time.Saturday},
	"weekdays": {time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	"weekend":  {time.Saturday, time.Sunday},
	"daily":    {time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
}

func parseDays(names []string) ([]time.Weekday, error) {
	var out []time.Weekday
	seen := make(map[time.Weekday]bool)
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if len(key) > 3 && dayNames[key] == nil {
			key = key[:3]
		}
		days, ok := dayNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown day %q", n)
		}
		for _, d := range days {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
