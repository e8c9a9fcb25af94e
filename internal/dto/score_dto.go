package dto

// ScoreExportRequest selects the class and output format of a score export.
type ScoreExportRequest struct {
	ClassID uint   `query:"classId" validate:"required,gt=0"`
	Format  string `query:"format" validate:"omitempty,oneof=json csv"`
}

// ScoreExportRow is one student's line in the export. Scores align with ActivityTitles.
type ScoreExportRow struct {
	StudentID uint     `json:"student_id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Scores    []string `json:"scores"`
}

// ScoreExportResponse is the score matrix of a class.
type ScoreExportResponse struct {
	ClassID        uint             `json:"class_id"`
	Columns        []string         `json:"columns"`
	ActivityTitles []string         `json:"activity_titles"`
	Rows           []ScoreExportRow `json:"rows"`
}

// Records flattens the export into header plus rows for tabular writers.
func (r ScoreExportResponse) Records() [][]string {
	records := make([][]string, 0, len(r.Rows)+1)
	records = append(records, append([]string(nil), r.Columns...))
	for _, row := range r.Rows {
		record := make([]string, 0, len(row.Scores)+2)
		record = append(record, row.Name, row.Email)
		record = append(record, row.Scores...)
		records = append(records, record)
	}
	return records
}
