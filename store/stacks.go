package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/models"
)

// CreateStack inserts a new stack row, stamping CreatedAt/UpdatedAt.
func (s *Store) CreateStack(stack *models.Stack) error {
	query := `
		INSERT INTO stacks (
			id, name, user_id, team_id, compose_content, status,
			webhook_token, cron_schedule, git_url, git_branch, last_commit,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	stack.CreatedAt = now
	stack.UpdatedAt = now

	_, err := s.conn.Exec(query,
		stack.ID, stack.Name, stack.UserID, stack.TeamID, stack.ComposeContent,
		stack.Status, stack.WebhookToken, stack.CronSchedule, stack.GitURL,
		stack.GitBranch, stack.LastCommit, stack.CreatedAt, stack.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stack %q: %w", stack.ID, err)
	}
	return nil
}

// GetStack fetches one stack by ID. Returns a NotFound *errs.AppError if
// no row matches.
func (s *Store) GetStack(id string) (*models.Stack, error) {
	row := s.conn.QueryRow(stackSelect+" WHERE id = ?", id)
	stack, err := scanStack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("stack %q not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get stack %q: %w", id, err)
	}
	return stack, nil
}

// GetStackByWebhookToken is the lookup the webhook handler uses, since the
// caller only has the token, not the stack ID.
func (s *Store) GetStackByWebhookToken(token string) (*models.Stack, error) {
	row := s.conn.QueryRow(stackSelect+" WHERE webhook_token = ?", token)
	stack, err := scanStack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "no stack matches that webhook token")
	}
	if err != nil {
		return nil, fmt.Errorf("get stack by webhook token: %w", err)
	}
	return stack, nil
}

// ListStacksByTeam returns every stack belonging to a team, newest first.
func (s *Store) ListStacksByTeam(teamID string) ([]*models.Stack, error) {
	rows, err := s.conn.Query(stackSelect+" WHERE team_id = ? ORDER BY created_at DESC", teamID)
	if err != nil {
		return nil, fmt.Errorf("list stacks for team %q: %w", teamID, err)
	}
	defer rows.Close()

	var stacks []*models.Stack
	for rows.Next() {
		stack, err := scanStack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stack row: %w", err)
		}
		stacks = append(stacks, stack)
	}
	return stacks, rows.Err()
}

// ListAllStacks returns every stack, used by the automation scheduler and
// metrics collector which operate across teams.
func (s *Store) ListAllStacks() ([]*models.Stack, error) {
	rows, err := s.conn.Query(stackSelect + " ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("list all stacks: %w", err)
	}
	defer rows.Close()

	var stacks []*models.Stack
	for rows.Next() {
		stack, err := scanStack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stack row: %w", err)
		}
		stacks = append(stacks, stack)
	}
	return stacks, rows.Err()
}

// UpdateStackStatus sets status and bumps updated_at.
func (s *Store) UpdateStackStatus(id string, status models.StackStatus) error {
	result, err := s.conn.Exec(
		`UPDATE stacks SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update status for stack %q: %w", id, err)
	}
	return requireOneRowAffected(result, id)
}

// UpdateStackCompose replaces a stack's compose manifest content.
func (s *Store) UpdateStackCompose(id, composeContent string) error {
	result, err := s.conn.Exec(
		`UPDATE stacks SET compose_content = ?, updated_at = ? WHERE id = ?`,
		composeContent, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update compose content for stack %q: %w", id, err)
	}
	return requireOneRowAffected(result, id)
}

// UpdateStackWebhookToken rotates the webhook token, used by the
// regenerate-token operation.
func (s *Store) UpdateStackWebhookToken(id, token string) error {
	result, err := s.conn.Exec(
		`UPDATE stacks SET webhook_token = ?, updated_at = ? WHERE id = ?`,
		token, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update webhook token for stack %q: %w", id, err)
	}
	return requireOneRowAffected(result, id)
}

// UpdateStackLastCommit records the git commit the last successful
// redeploy was built from.
func (s *Store) UpdateStackLastCommit(id, commit string) error {
	result, err := s.conn.Exec(
		`UPDATE stacks SET last_commit = ?, updated_at = ? WHERE id = ?`,
		commit, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update last commit for stack %q: %w", id, err)
	}
	return requireOneRowAffected(result, id)
}

// DeleteStack removes a stack row. The caller is responsible for tearing
// down containers, domains, and routes first.
func (s *Store) DeleteStack(id string) error {
	result, err := s.conn.Exec(`DELETE FROM stacks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete stack %q: %w", id, err)
	}
	return requireOneRowAffected(result, id)
}

func requireOneRowAffected(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for %q: %w", id, err)
	}
	if rowsAffected == 0 {
		return errs.New(errs.NotFound, fmt.Sprintf("stack %q not found", id))
	}
	return nil
}

const stackSelect = `
	SELECT
		id, name, user_id, team_id, compose_content, status,
		webhook_token, cron_schedule, git_url, git_branch, last_commit,
		created_at, updated_at
	FROM stacks
`

func scanStack(row scanner) (*models.Stack, error) {
	var stack models.Stack
	err := row.Scan(
		&stack.ID, &stack.Name, &stack.UserID, &stack.TeamID, &stack.ComposeContent,
		&stack.Status, &stack.WebhookToken, &stack.CronSchedule, &stack.GitURL,
		&stack.GitBranch, &stack.LastCommit, &stack.CreatedAt, &stack.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &stack, nil
}
