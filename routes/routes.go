// Package routes synthesizes SUMO route files with independent per
// direction Bernoulli arrivals.
package routes

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/exp/rand"
)

var ErrUnknownReference = errors.New("routes: flow references an undefined route or vehicle type")

// VehicleType is the physical description of a class of vehicles
type VehicleType struct {
	ID       string  `xml:"id,attr"`
	Accel    float64 `xml:"accel,attr"`
	Decel    float64 `xml:"decel,attr"`
	Sigma    float64 `xml:"sigma,attr"`
	Length   float64 `xml:"length,attr"`
	MinGap   float64 `xml:"minGap,attr"`
	MaxSpeed float64 `xml:"maxSpeed,attr"`
	GUIShape string  `xml:"guiShape,attr,omitempty"`
}

// Route is an ordered sequence of edges
type Route struct {
	ID    string `xml:"id,attr"`
	Edges string `xml:"edges,attr"`
}

// Vehicle is a single departure
type Vehicle struct {
	ID     string `xml:"id,attr"`
	Type   string `xml:"type,attr"`
	Route  string `xml:"route,attr"`
	Depart int    `xml:"depart,attr"`
	Color  string `xml:"color,attr,omitempty"`
}

// Flow is a direction of arrivals. Every tick a vehicle departs with
// probability Probability.
type Flow struct {
	Name        string
	Route       string
	VehicleType string
	Probability float64
	Color       string
}

// Config of the generator
type Config struct {
	Seed         int64
	Steps        int
	VehicleTypes []VehicleType
	Routes       []Route
	Flows        []Flow
}

// Document is the generated route file
type Document struct {
	XMLName      xml.Name      `xml:"routes"`
	VehicleTypes []VehicleType `xml:"vType"`
	Routes       []Route       `xml:"route"`
	Vehicles     []Vehicle     `xml:"vehicle"`
}

// CrossScenario is the single intersection scenario: west to east, east to
// west and north to south traffic over an hour of simulated time
func CrossScenario(seed int64) *Config {
	return &Config{
		Seed:  seed,
		Steps: 3600,
		VehicleTypes: []VehicleType{
			{ID: "typeWE", Accel: 0.8, Decel: 4.5, Sigma: 0.5, Length: 5, MinGap: 2.5, MaxSpeed: 16.67, GUIShape: "passenger"},
			{ID: "typeNS", Accel: 0.8, Decel: 4.5, Sigma: 0.5, Length: 7, MinGap: 3, MaxSpeed: 25, GUIShape: "bus"},
		},
		Routes: []Route{
			{ID: "right", Edges: "51o 1i 2o 52i"},
			{ID: "left", Edges: "52o 2i 1o 51i"},
			{ID: "down", Edges: "54o 4i 3o 53i"},
		},
		Flows: []Flow{
			{Name: "right", Route: "right", VehicleType: "typeWE", Probability: 1. / 10},
			{Name: "left", Route: "left", VehicleType: "typeWE", Probability: 1. / 11},
			{Name: "down", Route: "down", VehicleType: "typeNS", Probability: 1. / 30, Color: "1,0,0"},
		},
	}
}

func (c *Config) validate() error {
	types := make(map[string]bool)
	for _, t := range c.VehicleTypes {
		types[t.ID] = true
	}
	routes := make(map[string]bool)
	for _, r := range c.Routes {
		routes[r.ID] = true
	}
	for _, f := range c.Flows {
		if !types[f.VehicleType] || !routes[f.Route] {
			return fmt.Errorf("%w: flow %s", ErrUnknownReference, f.Name)
		}
		if f.Probability < 0 || f.Probability > 1 {
			return fmt.Errorf("routes: flow %s probability %v outside [0, 1]", f.Name, f.Probability)
		}
	}
	return nil
}

// Build draws the schedule. The random source is reseeded with c.Seed on
// every call so the same config always yields the same schedule.
func Build(c *Config) (*Document, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	r := rand.New(rand.NewSource(uint64(c.Seed)))

	doc := &Document{
		VehicleTypes: append([]VehicleType{}, c.VehicleTypes...),
		Routes:       append([]Route{}, c.Routes...),
		Vehicles:     make([]Vehicle, 0),
	}
	counters := make([]int, len(c.Flows))
	for tick := 0; tick < c.Steps; tick++ {
		for i, f := range c.Flows {
			if r.Float64() < f.Probability {
				doc.Vehicles = append(doc.Vehicles, Vehicle{
					ID:     fmt.Sprintf("%s_%d", f.Name, counters[i]),
					Type:   f.VehicleType,
					Route:  f.Route,
					Depart: tick,
					Color:  f.Color,
				})
				counters[i]++
			}
		}
	}
	return doc, nil
}

// Write generates the schedule and writes it as XML to w
func Write(c *Config, w io.Writer) error {
	doc, err := Build(c)
	if err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// Generate overwrites the route file at path
func Generate(c *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return fmt.Errorf("routes: creating folder for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("routes: creating %s: %w", path, err)
	}
	if err := Write(c, f); err != nil {
		f.Close()
		return fmt.Errorf("routes: writing %s: %w", path, err)
	}
	return f.Close()
}
