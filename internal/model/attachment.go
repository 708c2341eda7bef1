package model

import "time"

// Attachment is a binary file stored independently and referenced by id
// from Task.Attachments.
type Attachment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Data        []byte    `json:"data"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PopulatedTask is a Task whose attachment ids are expanded into full
// Attachment values. The Attachments field shadows Task.Attachments in JSON.
type PopulatedTask struct {
	Task
	Attachments []Attachment `json:"attachments"`
}

// PopulatedProject is the canonical response shape for project mutations.
type PopulatedProject struct {
	Project
	Tasks []PopulatedTask `json:"tasks"`
}

// Populate expands p's attachment references using byID. References with no
// matching attachment are dropped from the result.
func Populate(p Project, byID map[string]Attachment) PopulatedProject {
	out := PopulatedProject{Project: p, Tasks: make([]PopulatedTask, 0, len(p.Tasks))}
	for _, t := range p.Tasks {
		pt := PopulatedTask{Task: t, Attachments: make([]Attachment, 0, len(t.Attachments))}
		for _, id := range t.Attachments {
			if a, ok := byID[id]; ok {
				pt.Attachments = append(pt.Attachments, a)
			}
		}
		out.Tasks = append(out.Tasks, pt)
	}
	return out
}
