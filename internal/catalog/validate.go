package catalog

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field rules, duplicate ids, cross references and schedule
// ordering. Every problem found is returned joined into one error.
func (c *Catalog) Validate() error {
	var errs []error

	structs := func(kind, id string, v any) {
		if err := validate.Struct(v); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", kind, id, err))
		}
	}
	dupes := func(kind string, ids []string) {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				errs = append(errs, fmt.Errorf("%s %q: duplicate id", kind, id))
			}
			seen[id] = true
		}
	}

	ids := make([]string, 0, len(c.Stations))
	for _, s := range c.Stations {
		structs("station", s.ID, s)
		ids = append(ids, s.ID)
	}
	dupes("station", ids)

	ids = ids[:0]
	for _, l := range c.Lines {
		structs("line", l.ID, l)
		ids = append(ids, l.ID)
		for _, sid := range l.StationIDs {
			if _, ok := c.stationByID[sid]; !ok {
				errs = append(errs, fmt.Errorf("line %q references unknown station %q", l.ID, sid))
			}
		}
	}
	dupes("line", ids)

	ids = ids[:0]
	for _, t := range c.TrainTypes {
		structs("train type", t.ID, t)
		ids = append(ids, t.ID)
	}
	dupes("train type", ids)

	ids = ids[:0]
	for _, svc := range c.Services {
		structs("service", svc.ID, svc)
		ids = append(ids, svc.ID)
		if _, ok := c.lineByID[svc.LineID]; !ok {
			errs = append(errs, fmt.Errorf("service %q references unknown line %q", svc.ID, svc.LineID))
		}
		if _, ok := c.trainTypeByID[svc.TrainTypeID]; !ok {
			errs = append(errs, fmt.Errorf("service %q references unknown train type %q", svc.ID, svc.TrainTypeID))
		}
		for _, st := range svc.Stops {
			if _, ok := c.stationByID[st.StationID]; !ok {
				errs = append(errs, fmt.Errorf("service %q references unknown station %q", svc.ID, st.StationID))
			}
		}
		if err := checkSchedule(svc); err != nil {
			errs = append(errs, err)
		}
	}
	dupes("service", ids)

	return errors.Join(errs...)
}

// checkSchedule requires arrival <= departure at each stop and
// departure_i <= arrival_{i+1} between stops.
func checkSchedule(svc Service) error {
	for i, st := range svc.Stops {
		if st.Departure < st.Arrival {
			return fmt.Errorf("service %q stop %d (%s): departure %s before arrival %s",
				svc.ID, i, st.StationID, st.Departure, st.Arrival)
		}
		if i+1 < len(svc.Stops) && svc.Stops[i+1].Arrival < st.Departure {
			return fmt.Errorf("service %q stop %d (%s): arrival %s before previous departure %s",
				svc.ID, i+1, svc.Stops[i+1].StationID, svc.Stops[i+1].Arrival, st.Departure)
		}
	}
	return nil
}
