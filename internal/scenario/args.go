package scenario

import (
	"github.com/aretw0/blocksync/internal/dto"
	"github.com/aretw0/blocksync/pkg/domain"
)

type bindArgs struct {
	Store         string         `mapstructure:"store"`
	ControllingID string         `mapstructure:"controlling_id"`
	Value         []dto.NodeSpec `mapstructure:"value"`
}

type updateArgs struct {
	Value []dto.NodeSpec `mapstructure:"value"`
	// Report replays the n-th reported value (1-based) instead of Value.
	Report int `mapstructure:"report"`
}

type editArgs struct {
	Store      string         `mapstructure:"store"`
	Op         string         `mapstructure:"op"`
	ID         string         `mapstructure:"id"`
	Parent     string         `mapstructure:"parent"`
	Index      int            `mapstructure:"index"`
	Attributes map[string]any `mapstructure:"attributes"`
	Node       dto.NodeSpec   `mapstructure:"node"`
	Transient  bool           `mapstructure:"transient"`
	Ignored    bool           `mapstructure:"ignored"`
}

type selectArgs struct {
	Store string          `mapstructure:"store"`
	Start domain.Location `mapstructure:"start"`
	End   domain.Location `mapstructure:"end"`
}

type storeArgs struct {
	Store string `mapstructure:"store"`
}

type expectArgs struct {
	Store         string            `mapstructure:"store"`
	Writes        *int              `mapstructure:"writes"`
	Changes       *int              `mapstructure:"changes"`
	Inputs        *int              `mapstructure:"inputs"`
	Listeners     *int              `mapstructure:"listeners"`
	Target        string            `mapstructure:"target"`
	Controlled    []string          `mapstructure:"controlled"`
	NotControlled []string          `mapstructure:"not_controlled"`
	Content       map[string]string `mapstructure:"content"`
}
