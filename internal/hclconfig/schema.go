package hclconfig

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot decodes every top-level block a file may hold.
type fileRoot struct {
	Architectures []*architectureBlock `hcl:"architecture,block"`
	TaskGraphs    []*taskGraphBlock    `hcl:"taskgraph,block"`
	Placement     []*PlacementSettings `hcl:"placement,block"`
	Routing       []*RoutingSettings   `hcl:"routing,block"`
	Remain        hcl.Body             `hcl:",remain"`
}

type architectureBlock struct {
	Name      string           `hcl:"name,label"`
	Distance  string           `hcl:"distance,optional"`
	Meshes    []*meshBlock     `hcl:"mesh,block"`
	Resources []*resourceBlock `hcl:"resource,block"`
	Links     []*linkBlock     `hcl:"link,block"`
}

type meshBlock struct {
	Rows         int    `hcl:"rows"`
	Cols         int    `hcl:"cols"`
	Class        string `hcl:"class,optional"`
	Prefix       string `hcl:"prefix,optional"`
	Capacity     int    `hcl:"capacity,optional"`
	LinkCapacity int    `hcl:"link_capacity,optional"`
	LinkLength   int    `hcl:"link_length,optional"`
	LinkClass    string `hcl:"link_class,optional"`
	OriginX      int    `hcl:"origin_x,optional"`
	OriginY      int    `hcl:"origin_y,optional"`
}

type resourceBlock struct {
	Name     string  `hcl:"name,label"`
	Class    string  `hcl:"class"`
	Capacity int     `hcl:"capacity,optional"`
	Routable bool    `hcl:"routable,optional"`
	Cost     float64 `hcl:"cost,optional"`
	X        *int    `hcl:"x,optional"`
	Y        *int    `hcl:"y,optional"`
	// Attributes is free-form metadata kept on the resource.
	Attributes cty.Value `hcl:"attributes,optional"`
}

type linkBlock struct {
	From          string  `hcl:"from"`
	To            string  `hcl:"to"`
	Capacity      int     `hcl:"capacity,optional"`
	Length        int     `hcl:"length,optional"`
	Cost          float64 `hcl:"cost,optional"`
	Class         string  `hcl:"class,optional"`
	Bidirectional bool    `hcl:"bidirectional,optional"`
}

type taskGraphBlock struct {
	Name     string          `hcl:"name,label"`
	Tasks    []*taskBlock    `hcl:"task,block"`
	Channels []*channelBlock `hcl:"channel,block"`
}

type taskBlock struct {
	Name  string `hcl:"name,label"`
	Class string `hcl:"class"`
	Fixed string `hcl:"fixed,optional"`
}

type channelBlock struct {
	Name        string   `hcl:"name,label"`
	Source      string   `hcl:"source"`
	Sinks       []string `hcl:"sinks"`
	Weight      float64  `hcl:"weight,optional"`
	LinkClasses []string `hcl:"link_classes,optional"`
}

// PlacementSettings holds the optional `placement` block. Nil fields keep
// the engine defaults.
type PlacementSettings struct {
	Seed               *uint64  `hcl:"seed,optional"`
	MoveAttempts       *int     `hcl:"move_attempts,optional"`
	InitialTemperature *float64 `hcl:"initial_temperature,optional"`
	MaxMoveRetries     *int     `hcl:"max_move_retries,optional"`
	MaxWarmTicks       *int     `hcl:"max_warm_ticks,optional"`
	// MoveGenerator is "cached" or "search".
	MoveGenerator *string  `hcl:"move_generator,optional"`
	WarmRatio     *float64 `hcl:"warm_ratio,optional"`
	// Cooler is "default", "fixed" or "deviation".
	Cooler       *string  `hcl:"cooler,optional"`
	CoolerAlpha  *float64 `hcl:"cooler_alpha,optional"`
	CoolerLambda *float64 `hcl:"cooler_lambda,optional"`
	LimiterRatio *float64 `hcl:"limiter_ratio,optional"`
	// Doner is "default" or "deviation".
	Doner       *string  `hcl:"doner,optional"`
	DoneEpsilon *float64 `hcl:"done_epsilon,optional"`
	MaxTicks    *int     `hcl:"max_ticks,optional"`
	MaxDuration *string  `hcl:"max_duration,optional"`
}

// RoutingSettings holds the optional `routing` block.
type RoutingSettings struct {
	MaxIterations *int     `hcl:"max_iterations,optional"`
	PresentFactor *float64 `hcl:"present_factor,optional"`
	PresentGrowth *float64 `hcl:"present_growth,optional"`
	HistoryFactor *float64 `hcl:"history_factor,optional"`
	Batched       *bool    `hcl:"batched,optional"`
	Workers       *int     `hcl:"workers,optional"`
}
