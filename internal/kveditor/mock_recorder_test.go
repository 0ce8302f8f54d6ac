package kveditor

type recordedChange struct {
	path, tmpPath, id string
	tmpContent        string
}

type mockRecorder struct {
	err     error
	changes []recordedChange
	read    func(string) string
}

func (m *mockRecorder) RecordFileChange(path, tmpPath, id string) error {
	c := recordedChange{path: path, tmpPath: tmpPath, id: id}
	if m.read != nil {
		c.tmpContent = m.read(tmpPath)
	}
	m.changes = append(m.changes, c)
	return m.err
}
