package models

import (
	"time"

	"gopkg.in/yaml.v3"
)

type Equipment struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	SortOrder   int64     `yaml:"sort_order" json:"sort_order"`
	IsActive    bool      `yaml:"is_active" json:"is_active"`
	CreatedAt   time.Time `yaml:"-" json:"created_at"`
	UpdatedAt   time.Time `yaml:"-" json:"updated_at"`
}

// UnmarshalYAML treats equipment as active unless the entry says otherwise,
// so a seed list without is_active does not come up unbookable.
func (e *Equipment) UnmarshalYAML(value *yaml.Node) error {
	type plain Equipment
	raw := plain{IsActive: true}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*e = Equipment(raw)
	return nil
}
