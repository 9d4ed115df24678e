package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/franckalain/traypositions/internal/models"
)

// ParsePositions parses the model reply as a JSON object of food name to
// clock-position and returns one record per key, in the order the keys
// appear in the reply. Anything else fails with ErrParseResponse.
func ParsePositions(raw string) ([]models.FoodPosition, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, parseErr(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, parseErr(fmt.Errorf("expected object, got %v", tok))
	}

	positions := make([]models.FoodPosition, 0)
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, parseErr(err)
		}
		food, ok := tok.(string)
		if !ok {
			return nil, parseErr(fmt.Errorf("unexpected key %v", tok))
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, parseErr(err)
		}
		position, ok := tok.(string)
		if !ok {
			return nil, parseErr(fmt.Errorf("position of %q is not a string", food))
		}

		// a repeated key keeps its first slot and takes the later value
		if i, seen := index[food]; seen {
			positions[i].Position = position
			continue
		}
		index[food] = len(positions)
		positions = append(positions, models.FoodPosition{Food: food, Position: position})
	}

	if _, err := dec.Token(); err != nil {
		return nil, parseErr(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, parseErr(fmt.Errorf("trailing data after object"))
	}

	return positions, nil
}

func parseErr(err error) error {
	return fmt.Errorf("%w: %v", ErrParseResponse, err)
}
