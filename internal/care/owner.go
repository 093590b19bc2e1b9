package care

import "fmt"

// Pet is looked up by id from tasks; tasks hold no pointer to it.
type Pet struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Species    string `json:"species,omitempty"`
	Age        int    `json:"age,omitempty"`
	HealthInfo string `json:"health_info,omitempty"`
}

// Owner is the unit handed over by storage: one person, their pets and tasks.
type Owner struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Availability Window `json:"availability,omitempty"`
	Pets         []Pet  `json:"pets,omitempty"`
	Tasks        []Task `json:"tasks,omitempty"`
}

func (o Owner) Pet(id string) (Pet, bool) {
	for _, p := range o.Pets {
		if p.ID == id {
			return p, true
		}
	}
	return Pet{}, false
}

// PetName falls back to the id when the pet is unknown.
func (o Owner) PetName(id string) string {
	if p, ok := o.Pet(id); ok && p.Name != "" {
		return p.Name
	}
	return id
}

// TaskIndex returns the index of task id, or -1.
func (o Owner) TaskIndex(id string) int {
	for i := range o.Tasks {
		if o.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Validate checks every task and rejects duplicate task ids.
func (o Owner) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("owner id is required")
	}
	seen := make(map[string]struct{}, len(o.Tasks))
	for _, t := range o.Tasks {
		if t.ID == "" {
			return &InvalidTaskError{Field: "id", Reason: "task id is required"}
		}
		if _, dup := seen[t.ID]; dup {
			return &InvalidTaskError{TaskID: t.ID, Field: "id", Value: t.ID, Reason: "duplicate task id"}
		}
		seen[t.ID] = struct{}{}
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (o Owner) Clone() Owner {
	out := o
	if o.Pets != nil {
		out.Pets = append([]Pet(nil), o.Pets...)
	}
	out.Tasks = CloneTasks(o.Tasks)
	return out
}
