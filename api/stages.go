package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MrEthical07/goStage/stage"
)

const pathStages = "/api/stages"

func stagePath(id int64, suffix string) string {
	return pathStages + "/" + strconv.FormatInt(id, 10) + suffix
}

func (c *Client) list(ctx context.Context, path string, query url.Values) ([]stage.Stage, error) {
	var out []stage.Stage
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) one(ctx context.Context, method, path string, query url.Values, in any) (*stage.Stage, error) {
	var out stage.Stage
	if err := c.do(ctx, method, path, query, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stages lists every stage visible to the caller.
func (c *Client) Stages(ctx context.Context) ([]stage.Stage, error) {
	return c.list(ctx, pathStages, nil)
}

func (c *Client) Stage(ctx context.Context, id int64) (*stage.Stage, error) {
	return c.one(ctx, http.MethodGet, stagePath(id, ""), nil, nil)
}

// MyStages lists the caller's own stages.
func (c *Client) MyStages(ctx context.Context) ([]stage.Stage, error) {
	return c.list(ctx, pathStages+"/my-stages", nil)
}

func (c *Client) SearchStages(ctx context.Context, q string) ([]stage.Stage, error) {
	return c.list(ctx, pathStages+"/search", url.Values{"q": {q}})
}

// StagesToValidate lists pending stages the caller may review.
func (c *Client) StagesToValidate(ctx context.Context) ([]stage.Stage, error) {
	return c.list(ctx, pathStages+"/to-validate", nil)
}

func (c *Client) StagesByFiliere(ctx context.Context, filiereID int64) ([]stage.Stage, error) {
	return c.list(ctx, fmt.Sprintf("%s/filiere/%d", pathStages, filiereID), nil)
}

func (c *Client) StagesByStudent(ctx context.Context, studentID int64) ([]stage.Stage, error) {
	return c.list(ctx, fmt.Sprintf("%s/student/%d", pathStages, studentID), nil)
}

func (c *Client) StagesByTeacher(ctx context.Context, teacherID int64) ([]stage.Stage, error) {
	return c.list(ctx, fmt.Sprintf("%s/teacher/%d", pathStages, teacherID), nil)
}

func (c *Client) StagesByEncadrant(ctx context.Context, encadrantID int64) ([]stage.Stage, error) {
	return c.list(ctx, fmt.Sprintf("%s/encadrant/%d", pathStages, encadrantID), nil)
}

func (c *Client) CreateStage(ctx context.Context, d stage.Draft) (*stage.Stage, error) {
	return c.one(ctx, http.MethodPost, pathStages, nil, d)
}

func (c *Client) UpdateStage(ctx context.Context, id int64, p stage.Patch) (*stage.Stage, error) {
	return c.one(ctx, http.MethodPut, stagePath(id, ""), nil, p)
}

func (c *Client) SubmitStage(ctx context.Context, id int64) (*stage.Stage, error) {
	return c.one(ctx, http.MethodPut, stagePath(id, "/submit"), nil, nil)
}

// ValidateStage accepts a pending stage and assigns encadrantID.
func (c *Client) ValidateStage(ctx context.Context, id, encadrantID int64) (*stage.Stage, error) {
	q := url.Values{"encadrantId": {strconv.FormatInt(encadrantID, 10)}}
	return c.one(ctx, http.MethodPut, stagePath(id, "/validate"), q, nil)
}

// RefuseStage rejects a pending stage with comment.
func (c *Client) RefuseStage(ctx context.Context, id int64, comment string) (*stage.Stage, error) {
	return c.one(ctx, http.MethodPut, stagePath(id, "/refuse"), url.Values{"commentaire": {comment}}, nil)
}

// AdvanceStage moves a validated stage to to.
func (c *Client) AdvanceStage(ctx context.Context, id int64, to stage.State) (*stage.Stage, error) {
	return c.one(ctx, http.MethodPut, stagePath(id, "/status"), url.Values{"etat": {string(to)}}, nil)
}

func (c *Client) CancelStage(ctx context.Context, id int64) (*stage.Stage, error) {
	return c.one(ctx, http.MethodPut, stagePath(id, "/cancel"), nil, nil)
}

type reassignRequest struct {
	EncadrantID int64 `json:"encadrantId"`
}

func (c *Client) ReassignEncadrant(ctx context.Context, id, encadrantID int64) (*stage.Stage, error) {
	return c.one(ctx, http.MethodPost, stagePath(id, "/reassign-encadrant"), nil, reassignRequest{EncadrantID: encadrantID})
}

func (c *Client) DeleteStage(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, stagePath(id, ""), nil, nil, nil)
}
