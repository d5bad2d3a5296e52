package scraper

import (
	"bytes"
	"encoding/json"
)

// courseListRequest is the body posted to the course list endpoint.
type courseListRequest struct {
	Language     string              `json:"language"`
	Skip         int                 `json:"skip"`
	Take         int                 `json:"take"`
	SelectMethod int                 `json:"selectMethod"`
	MemberIDTac  int                 `json:"memberIdTac"`
	CenterIDs    []int               `json:"centerIds"`
	DaytimeIDs   []int               `json:"daytimeIds"`
	WeekdayIDs   []int               `json:"weekdayIds"`
	CourseTitles []courseTitleFilter `json:"coursetitles"`
}

type courseTitleFilter struct {
	CenterID    int    `json:"centerId"`
	CourseTitle string `json:"coursetitle"`
}

// ApiResponse models the top-level structure of the course list response.
type ApiResponse struct {
	Courses []ApiCourse `json:"courses"`
}

// ApiCourse is a single course occurrence returned by the booking API.
type ApiCourse struct {
	CourseIDTac CourseID `json:"courseIdTac"`
	Title       string   `json:"title"`
	Instructor  string   `json:"instructor"`
	Start       string   `json:"start"`
	Bookable    bool     `json:"bookable"`
}

// CourseID accepts the occurrence id as either a JSON number or string.
type CourseID string

func (c *CourseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CourseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = CourseID(n.String())
	return nil
}
