package backend

import (
	"bytes"
	"encoding/json"

	"github.com/hitoshi/jobportal/internal/model"
)

// jobOrList は単一の求人または求人の配列を受け付ける。
type jobOrList struct {
	single *model.Job
	list   []model.Job
}

// UnmarshalJSON は配列なら一覧として、オブジェクトなら単一の求人として読み込む。
func (l *jobOrList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &l.list)
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return err
	}
	l.single = &job
	return nil
}

// find は単一の求人ならそれを、一覧ならIDが一致する求人を返す。
func (l jobOrList) find(id model.ID) (model.Job, bool) {
	if l.single != nil {
		return *l.single, !l.single.ID.IsZero()
	}
	for _, j := range l.list {
		if j.ID == id {
			return j, true
		}
	}
	return model.Job{}, false
}

// jobList は求人の配列、または"jobs"か"data"に配列を持つオブジェクトを受け付ける。
type jobList struct {
	jobs []model.Job
}

func (l *jobList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		l.jobs = []model.Job{}
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &l.jobs)
	}
	var env struct {
		Jobs []model.Job `json:"jobs"`
		Data []model.Job `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	l.jobs = env.Jobs
	if l.jobs == nil {
		l.jobs = env.Data
	}
	if l.jobs == nil {
		l.jobs = []model.Job{}
	}
	return nil
}
