// Package textsql implements C8: turning a natural-language question into a
// validated, read-only SQL SELECT over the case/issue corpus, and executing
// it with a row-limit and a separate total count.
package textsql

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkoukk/tiktoken-go"

	"github.com/unergybot/tke/pkg/models"
)

const maxContextTokens = 3000

// jsonExtractRe pulls the first {...} object out of a possibly-noisy LLM
// reply, used when the model doesn't return bare JSON.
var jsonExtractRe = regexp.MustCompile(`(?s)\{.*\}`)

// selectExtractRe is the fallback parser for when the LLM reply contains no
// JSON at all: grab the first SELECT statement up to a semicolon or EOF.
var selectExtractRe = regexp.MustCompile(`(?is)SELECT\b.*?(?:;|$)`)

// Generation is the outcome of one Generate call.
type Generation struct {
	SQL          string   `json:"sql,omitempty"`
	Valid        bool     `json:"valid"`
	Error        string   `json:"error,omitempty"`
	TablesUsed   []string `json:"tables_used,omitempty"`
	ContextUsed  []string `json:"context_used,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

// llmResponse is the strict-JSON shape requested from the model.
type llmResponse struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// Generator turns questions into validated SQL and executes them.
type Generator struct {
	chat      ChatClient
	knowledge KnowledgeProvider
	synonyms  SynonymLister
	pool      *pgxpool.Pool
	encoder   *tiktoken.Tiktoken
}

// New builds a Generator. encoder may be nil, in which case context is not
// token-trimmed (used in tests where no real tokenizer is wired).
func New(chat ChatClient, knowledge KnowledgeProvider, synonyms SynonymLister, pool *pgxpool.Pool, encoder *tiktoken.Tiktoken) *Generator {
	return &Generator{chat: chat, knowledge: knowledge, synonyms: synonyms, pool: pool, encoder: encoder}
}

// NewWithDefaultEncoder builds a Generator using the cl100k_base encoding,
// the encoding used by the chat models this package targets.
func NewWithDefaultEncoder(chat ChatClient, knowledge KnowledgeProvider, synonyms SynonymLister, pool *pgxpool.Pool) (*Generator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding: %w", err)
	}
	return New(chat, knowledge, synonyms, pool, enc), nil
}

const systemPrompt = `You translate natural-language questions about an industrial mold-defect case corpus into a single read-only PostgreSQL SELECT statement. Respond with strict JSON: {"sql": "...", "explanation": "..."}. Never emit DDL or DML. Only query the cases and issues tables described in the context.`

// Generate assembles the six-layer context, calls the LLM, extracts and
// validates the resulting SQL, and checks its syntax via EXPLAIN.
func (g *Generator) Generate(ctx context.Context, question, expanded string) (*Generation, error) {
	contextText, used, err := g.buildContext(ctx, question, expanded)
	if err != nil {
		return nil, err
	}
	contextText = g.trimToBudget(contextText)

	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question)
	if expanded != "" && expanded != question {
		userPrompt += fmt.Sprintf("\nExpanded question: %s", expanded)
	}

	raw, err := g.chat.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDependency, err)
	}

	sql, explanation := parseLLMReply(raw)
	gen := &Generation{ContextUsed: used, Explanation: explanation}

	if sql == "" {
		gen.Error = "could not extract a SQL statement from the model's reply"
		return gen, nil
	}
	sql = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))

	if err := validateSafety(sql); err != nil {
		gen.Error = err.Error()
		return gen, nil
	}
	if err := validateSyntax(ctx, g.pool, sql); err != nil {
		gen.Error = err.Error()
		return gen, nil
	}

	gen.SQL = sql
	gen.Valid = true
	gen.TablesUsed = extractTableNames(sql)
	return gen, nil
}

// parseLLMReply tries strict JSON first, falling back to regex extraction
// of a bare SELECT statement when the model didn't follow the JSON contract.
func parseLLMReply(raw string) (sql, explanation string) {
	if m := jsonExtractRe.FindString(raw); m != "" {
		var resp llmResponse
		if err := json.Unmarshal([]byte(m), &resp); err == nil && resp.SQL != "" {
			return resp.SQL, resp.Explanation
		}
	}
	if m := selectExtractRe.FindString(raw); m != "" {
		return strings.TrimSuffix(strings.TrimSpace(m), ";"), ""
	}
	return "", ""
}

// trimToBudget truncates assembled context to maxContextTokens, preferring
// to drop from the end (the lowest-priority layers are appended last).
func (g *Generator) trimToBudget(text string) string {
	if g.encoder == nil {
		return text
	}
	tokens := g.encoder.Encode(text, nil, nil)
	if len(tokens) <= maxContextTokens {
		return text
	}
	return g.encoder.Decode(tokens[:maxContextTokens])
}

// Execute runs a validated SELECT with limit, plus a separate COUNT(*) over
// the same statement to report the true total.
func (g *Generator) Execute(ctx context.Context, sql string, limit int) (*models.SQLResult, error) {
	sql = strings.TrimSuffix(strings.TrimSpace(sql), ";")
	if err := validateSafety(sql); err != nil {
		return &models.SQLResult{Error: err.Error()}, nil
	}
	if err := validateSyntax(ctx, g.pool, sql); err != nil {
		return &models.SQLResult{Error: err.Error()}, nil
	}

	limited := fmt.Sprintf("%s LIMIT %d", sql, limit)
	rows, err := g.pool.Query(ctx, limited)
	if err != nil {
		return &models.SQLResult{Error: err.Error()}, nil
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return &models.SQLResult{Error: err.Error()}, nil
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return &models.SQLResult{Error: err.Error()}, nil
	}

	total := len(out)
	countRow := g.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _count_subquery", sql))
	if err := countRow.Scan(&total); err != nil {
		return &models.SQLResult{Error: err.Error()}, nil
	}

	return &models.SQLResult{
		Columns:    columns,
		Rows:       out,
		RowCount:   len(out),
		TotalCount: total,
	}, nil
}
