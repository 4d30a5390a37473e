package app

import (
	"fmt"
	"os"

	"github.com/tapflow/tapflow/base/utils"
	"github.com/tapflow/tapflow/taplib"
)

// Catalog is the set of stream descriptors this run extracts. Discovery
// and selection happen upstream; the catalog arrives with selection flags
// already resolved.
type Catalog struct {
	Streams []*taplib.Stream `mapstructure:"streams" json:"streams"`
}

// SelectedStreams returns the streams taking part in this run.
func (c *Catalog) SelectedStreams() []*taplib.Stream {
	selected := make([]*taplib.Stream, 0, len(c.Streams))
	for _, stream := range c.Streams {
		if stream.IsSelected() {
			selected = append(selected, stream)
		}
	}
	return selected
}

// LoadCatalog reads and parses a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog file %s: %v", path, err)
	}
	catalog := &Catalog{}
	if err = utils.ParseObject(data, catalog); err != nil {
		return nil, fmt.Errorf("error parsing catalog file %s: %v", path, err)
	}
	return catalog, nil
}

// LoadState reads the initial checkpoint state file. A missing or empty
// file means a first run.
func LoadState(path string) (*taplib.State, error) {
	if path == "" {
		return taplib.NewState(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return taplib.NewState(), nil
		}
		return nil, fmt.Errorf("error reading state file %s: %v", path, err)
	}
	state, err := taplib.ParseState(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing state file %s: %v", path, err)
	}
	return state, nil
}
