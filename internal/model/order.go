package model

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
)

const (
	ColorBW    = "bw"
	ColorColor = "color"

	SidesSingle = "single"
	SidesDouble = "double"
)

// Order is the joined read model: the order row plus its config,
// file records and derived config groups.
type Order struct {
	ID                string          `json:"id"`
	StudentName       string          `json:"studentName"`
	StudentID         string          `json:"studentId"`
	Timestamp         time.Time       `json:"timestamp"`
	Status            string          `json:"status"`
	IsActive          bool            `json:"isActive"`
	FileCount         int             `json:"fileCount"`
	Amount            decimal.Decimal `json:"amount"`
	AdditionalDetails string          `json:"additionalDetails,omitempty"`
	Files             []PrintFile     `json:"files"`
	Config            FileConfig      `json:"config"`
	FileGroups        []FileGroup     `json:"fileGroups,omitempty"`
}

type FileConfig struct {
	Color  string `json:"color"`
	Sides  string `json:"sides"`
	Copies int    `json:"copies"`
}

func (c FileConfig) Valid() bool {
	if c.Color != ColorBW && c.Color != ColorColor {
		return false
	}
	if c.Sides != SidesSingle && c.Sides != SidesDouble {
		return false
	}
	return c.Copies > 0
}

// GroupKey identifies the set of files sharing one print configuration.
func (c FileConfig) GroupKey() string {
	return fmt.Sprintf("%s-%s-%d", c.Color, c.Sides, c.Copies)
}

type PrintFile struct {
	Name        string     `json:"name"`
	Size        int64      `json:"size"`
	ContentType string     `json:"type"`
	PageCount   int        `json:"pageCount"`
	StoragePath string     `json:"path,omitempty"`
	Config      FileConfig `json:"config"`
	ConfigGroup string     `json:"configGroup"`
}

type FileGroup struct {
	GroupKey  string     `json:"groupKey"`
	Config    FileConfig `json:"config"`
	FileCount int        `json:"fileCount"`
}

// GroupFiles derives the config groups of an order from its file records.
func GroupFiles(files []PrintFile) []FileGroup {
	var groups []FileGroup
	index := make(map[string]int)
	for _, f := range files {
		i, ok := index[f.ConfigGroup]
		if !ok {
			index[f.ConfigGroup] = len(groups)
			groups = append(groups, FileGroup{GroupKey: f.ConfigGroup, Config: f.Config})
			i = len(groups) - 1
		}
		groups[i].FileCount++
	}
	return groups
}

// CreateOrderInput is the order submission payload. File bytes are consumed
// by the file store during submission; page counts come from the client.
type CreateOrderInput struct {
	StudentName       string
	StudentID         string
	Amount            decimal.Decimal
	AdditionalDetails string
	Config            FileConfig
	Files             []FileUpload
}

type FileUpload struct {
	Name        string
	Size        int64
	ContentType string
	PageCount   int
	Config      *FileConfig // nil inherits the order config
	Data        io.Reader
}

type LoginInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}
