package scoring

import (
	"fmt"
	"sort"
)

// Task is a learning module with fixed rewards. QuestWeight biases how often
// it is picked as the daily quest; zero keeps it out of the rotation.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	XP          int    `json:"xp"`
	Hax         int    `json:"hax"`
	QuestWeight int    `json:"quest_weight"`
}

type Catalog struct {
	tasks map[string]Task
	ids   []string
}

func NewCatalog(tasks ...Task) (*Catalog, error) {
	c := &Catalog{tasks: make(map[string]Task, len(tasks))}
	for _, t := range tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("catalog: empty task id")
		}
		if _, ok := c.tasks[t.ID]; ok {
			return nil, fmt.Errorf("catalog: duplicate task id %q", t.ID)
		}
		if t.XP < 0 || t.Hax < 0 || t.QuestWeight < 0 {
			return nil, fmt.Errorf("catalog: negative reward on %q", t.ID)
		}
		c.tasks[t.ID] = t
		c.ids = append(c.ids, t.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

func (c *Catalog) Lookup(id string) (Task, bool) {
	t, ok := c.tasks[id]
	return t, ok
}

// Tasks returns every task ordered by id.
func (c *Catalog) Tasks() []Task {
	out := make([]Task, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.tasks[id])
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.ids)
}

var defaultTasks = []Task{
	{ID: "recon-basics", Title: "Recon Basics", XP: 40, Hax: 8, QuestWeight: 3},
	{ID: "linux-shell", Title: "Linux Shell", XP: 50, Hax: 10, QuestWeight: 3},
	{ID: "networking-101", Title: "Networking 101", XP: 60, Hax: 12, QuestWeight: 3},
	{ID: "web-requests", Title: "Web Requests", XP: 60, Hax: 12, QuestWeight: 2},
	{ID: "sql-injection", Title: "SQL Injection", XP: 90, Hax: 18, QuestWeight: 2},
	{ID: "xss-lab", Title: "Cross-Site Scripting Lab", XP: 90, Hax: 18, QuestWeight: 2},
	{ID: "crypto-primer", Title: "Crypto Primer", XP: 75, Hax: 15, QuestWeight: 2},
	{ID: "password-cracking", Title: "Password Cracking", XP: 80, Hax: 16, QuestWeight: 1},
	{ID: "privilege-escalation", Title: "Privilege Escalation", XP: 120, Hax: 25, QuestWeight: 1},
	{ID: "incident-response", Title: "Incident Response", XP: 110, Hax: 22, QuestWeight: 1},
	{ID: "capstone-ctf", Title: "Capstone CTF", XP: 200, Hax: 40},
}

func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultTasks...)
	if err != nil {
		panic(err)
	}
	return c
}
