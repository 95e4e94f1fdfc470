package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/RosterImport/internal/roster"
)

// flexID decodes an identifier sent either as a JSON string or number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type campusDTO struct {
	ID       flexID `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Location string `json:"location"`
}

func (d campusDTO) toCampus() roster.Campus {
	return roster.Campus{
		ID:       string(d.ID),
		Name:     strings.TrimSpace(d.Name),
		Code:     strings.TrimSpace(d.Code),
		Location: strings.TrimSpace(d.Location),
	}
}

type courseDTO struct {
	ID       flexID `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	CampusID flexID `json:"campusId"`
	Campus   *struct {
		ID flexID `json:"id"`
	} `json:"campus"`
}

func (d courseDTO) toCourse() roster.Course {
	campusID := string(d.CampusID)
	if campusID == "" && d.Campus != nil {
		campusID = string(d.Campus.ID)
	}
	return roster.Course{
		ID:       string(d.ID),
		Name:     strings.TrimSpace(d.Name),
		Code:     strings.TrimSpace(d.Code),
		CampusID: campusID,
	}
}

type listMeta struct {
	paged      bool
	totalPages int
}

// decodeList accepts either a bare JSON array or a {"data": [...],
// "totalPages": n} envelope.
func decodeList(body []byte, into any) (listMeta, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return listMeta{}, fmt.Errorf("empty response body")
	}

	if trimmed[0] == '[' {
		return listMeta{}, json.Unmarshal(trimmed, into)
	}

	var env struct {
		Data       json.RawMessage `json:"data"`
		TotalPages int             `json:"totalPages"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return listMeta{}, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return listMeta{paged: true, totalPages: env.TotalPages}, nil
	}
	if err := json.Unmarshal(env.Data, into); err != nil {
		return listMeta{}, err
	}
	return listMeta{paged: true, totalPages: env.TotalPages}, nil
}

type rowDetailDTO struct {
	RegistrationNumber string `json:"registrationNumber"`
	Reason             string `json:"reason"`
	Error              string `json:"error"`
}

type batchResponseDTO struct {
	Created        int            `json:"created"`
	Skipped        int            `json:"skipped"`
	Failed         int            `json:"failed"`
	SkippedDetails []rowDetailDTO `json:"skippedDetails"`
	FailedDetails  []rowDetailDTO `json:"failedDetails"`
}

// decodeBatchResponse tolerates missing detail arrays and a response
// wrapped in a {"data": {...}} envelope.
func decodeBatchResponse(body []byte) (*roster.BatchResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &roster.BatchResponse{}, nil
	}

	var env struct {
		Data *batchResponseDTO `json:"data"`
		batchResponseDTO
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	dto := env.batchResponseDTO
	if env.Data != nil {
		dto = *env.Data
	}

	return &roster.BatchResponse{
		Created:        dto.Created,
		Skipped:        dto.Skipped,
		Failed:         dto.Failed,
		SkippedDetails: toDetails(dto.SkippedDetails),
		FailedDetails:  toDetails(dto.FailedDetails),
	}, nil
}

func toDetails(in []rowDetailDTO) []roster.RowDetail {
	if len(in) == 0 {
		return nil
	}
	out := make([]roster.RowDetail, 0, len(in))
	for _, d := range in {
		reason := d.Reason
		if reason == "" {
			reason = d.Error
		}
		out = append(out, roster.RowDetail{
			RegistrationNumber: d.RegistrationNumber,
			Reason:             reason,
		})
	}
	return out
}
