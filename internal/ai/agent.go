package ai

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// AgentConfig holds configuration for the AI agent.
type AgentConfig struct {
	// ClickHouse connection settings for the trade-history tool.
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Groq / LLM settings (OpenAI-compatible API).
	GroqAPIKey string
	Model      string

	Logger *logrus.Logger
}

// Agent answers market questions by planning which live data sources to
// read, fetching them, and summarising over the results.
type Agent struct {
	llm    llms.Model
	db     *sql.DB
	tools  []Tool
	logger *logrus.Logger
}

// NewAgent creates an Agent with its own ClickHouse and LLM clients. Live
// exchange tools are attached afterwards with WithTools.
func NewAgent(ctx context.Context, cfg AgentConfig) (*Agent, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	if cfg.GroqAPIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required")
	}

	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}

	llm, err := openai.New(
		openai.WithToken(cfg.GroqAPIKey),
		openai.WithBaseURL("https://api.groq.com/openai/v1"),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Groq LLM: %w", err)
	}

	agent := &Agent{llm: llm, logger: cfg.Logger}

	// ClickHouse is optional: without it the history tool is simply absent.
	if cfg.ClickHouseAddr != "" {
		db := clickhouse.OpenDB(&clickhouse.Options{
			Addr: []string{cfg.ClickHouseAddr},
			Auth: clickhouse.Auth{
				Database: cfg.ClickHouseDatabase,
				Username: cfg.ClickHouseUsername,
				Password: cfg.ClickHousePassword,
			},
		})
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping ClickHouse from AI agent: %w", err)
		}
		agent.db = db
		agent.tools = append(agent.tools, TradeHistoryTool(db))
	}

	cfg.Logger.WithFields(logrus.Fields{
		"model":      cfg.Model,
		"clickhouse": cfg.ClickHouseAddr != "",
	}).Info("initialized AI agent")

	return agent, nil
}

// WithTools attaches live data tools (order book, pools, recent trades)
func (a *Agent) WithTools(tools ...Tool) *Agent {
	a.tools = append(a.tools, tools...)
	return a
}

// Close closes underlying resources.
func (a *Agent) Close() error {
	if a.db != nil {
		a.logger.Debug("closing AI agent ClickHouse connection")
		return a.db.Close()
	}
	return nil
}

// AskResult is the structured result of an Ask call. Confidence reflects how
// much of the answer is backed by fetched exchange data rather than the
// model alone.
type AskResult struct {
	Answer      string
	HasRealData bool
	ToolsUsed   []string
	Confidence  int
}

// Ask plans which tools the question needs, fetches them, and answers over
// the fetched context. Tool failures degrade the answer, never fail it.
func (a *Agent) Ask(ctx context.Context, question string) (*AskResult, error) {
	planned, err := a.planTools(ctx, question)
	if err != nil {
		return nil, err
	}

	var used []string
	var contextParts []string
	for _, name := range planned {
		tool, ok := a.toolByName(name)
		if !ok {
			continue
		}
		data, err := tool.Fetch(ctx)
		if err != nil {
			a.logger.WithError(err).WithField("tool", tool.Name).Warn("tool fetch failed")
			continue
		}
		used = append(used, tool.Name)
		contextParts = append(contextParts, fmt.Sprintf("=== %s ===\n%s", tool.Name, data))
	}

	answer, err := a.answer(ctx, question, contextParts)
	if err != nil {
		return nil, err
	}

	return &AskResult{
		Answer:      answer,
		HasRealData: len(used) > 0,
		ToolsUsed:   used,
		Confidence:  confidenceFor(len(used)),
	}, nil
}

// confidenceFor scores an answer by how many live data sources backed it:
// 50 for a model-only answer, 70 plus 5 per tool capped at 95.
func confidenceFor(toolCount int) int {
	if toolCount == 0 {
		return 50
	}
	bonus := toolCount * 5
	if bonus > 25 {
		bonus = 25
	}
	return 70 + bonus
}

// planTools asks the LLM which data sources the question needs
func (a *Agent) planTools(ctx context.Context, question string) ([]string, error) {
	if len(a.tools) == 0 {
		return nil, nil
	}

	var catalog strings.Builder
	for _, t := range a.tools {
		fmt.Fprintf(&catalog, "- %s: %s\n", t.Name, t.Description)
	}

	prompt := fmt.Sprintf(`
You are a planner for an environmental-credit exchange assistant.

Available data sources:
%s

User question:
%s

Return ONLY a JSON array of data source names needed to answer the question,
e.g. ["order_book","recent_trades"]. Return [] if none are needed.
`, catalog.String(), question)

	resp, err := llms.GenerateFromSinglePrompt(
		ctx,
		a.llm,
		prompt,
		llms.WithMaxTokens(128),
	)
	if err != nil {
		return nil, fmt.Errorf("LLM tool planning failed: %w", err)
	}

	planned := parseToolPlan(resp)
	a.logger.WithField("tools", planned).Debug("planned tools for question")
	return planned, nil
}

// answer summarises the fetched data into a direct response
func (a *Agent) answer(ctx context.Context, question string, contextParts []string) (string, error) {
	dataContext := "No live exchange data was fetched for this question."
	if len(contextParts) > 0 {
		dataContext = strings.Join(contextParts, "\n\n")
	}

	prompt := fmt.Sprintf(`
You are a helpful assistant for a tokenized environmental-credit exchange.
Users trade carbon, water, and biodiversity credits against a test USD token,
either through liquidity pools or an on-chain order book.

Live exchange data:
%s

Schema notes for any historical statistics:
%s

User question:
%s

Instructions:
- Answer concisely using short sentences or bullet points.
- Quote concrete numbers from the live data where relevant, rounded reasonably.
- If the data does not cover the question, say so rather than inventing figures.
`, dataContext, tradesSchemaDescription, question)

	resp, err := llms.GenerateFromSinglePrompt(
		ctx,
		a.llm,
		prompt,
		llms.WithMaxTokens(512),
	)
	if err != nil {
		return "", fmt.Errorf("LLM answer failed: %w", err)
	}

	return strings.TrimSpace(resp), nil
}

func (a *Agent) toolByName(name string) (Tool, bool) {
	for _, t := range a.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// parseToolPlan extracts a JSON array of tool names from LLM output,
// tolerating code fences and surrounding prose.
func parseToolPlan(s string) []string {
	s = strings.TrimSpace(s)

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil
	}

	var names []string
	if err := json.Unmarshal([]byte(s[start:end+1]), &names); err != nil {
		return nil
	}

	out := names[:0]
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
