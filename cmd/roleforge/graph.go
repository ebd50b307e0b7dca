package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terraphim-labs/roleforge/pkg/rolegraph"
	"github.com/terraphim-labs/roleforge/pkg/thesaurus"
)

var (
	graphDocsFile string
	graphRoleName string
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect a role-scoped knowledge graph built from a document file",
}

// graphDoc is the on-disk shape loadGraph reads: one JSON array of
// documents, whose title words and tags seed the thesaurus before the
// documents are indexed.
type graphDoc struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

func loadGraph(path, roleName string) (*rolegraph.RoleGraph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read docs file: %w", err)
	}
	var docs []graphDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("parse docs file: %w", err)
	}

	th := thesaurus.New()
	var nextID uint64 = 1
	seed := func(word string) {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			return
		}
		if _, ok := th.Get(word); ok {
			return
		}
		th.Insert(word, thesaurus.NormalizedTerm{ID: nextID, Value: word})
		nextID++
	}
	for _, d := range docs {
		for _, word := range strings.Fields(d.Title) {
			seed(word)
		}
		for _, tag := range d.Tags {
			seed(tag)
		}
	}

	graph, err := rolegraph.New(roleName, th, nil)
	if err != nil {
		return nil, fmt.Errorf("build role graph: %w", err)
	}
	for _, d := range docs {
		if err := graph.InsertDocument(d.ID, rolegraph.Document{Title: d.Title, Body: d.Body, Tags: d.Tags}); err != nil {
			return nil, fmt.Errorf("insert document %q: %w", d.ID, err)
		}
	}
	return graph, nil
}

var graphQueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a query against the graph built from --docs and print matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, err := loadGraph(graphDocsFile, graphRoleName)
		if err != nil {
			return err
		}
		results, err := graph.Query(context.Background(), args[0], 0, 20)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, r := range results {
			fmt.Printf("%s\trank=%d\ttags=%v\n", r.DocumentID, r.Rank, r.Tags)
		}
		return nil
	},
}

var graphRankCmd = &cobra.Command{
	Use:   "rank",
	Short: "List every node in the graph, ordered by its heaviest incident edge, descending",
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, err := loadGraph(graphDocsFile, graphRoleName)
		if err != nil {
			return err
		}
		for _, n := range graph.RankedNodes() {
			fmt.Printf("%d\t%s\trank=%d\n", n.ID, n.NormalizedTerm, n.Rank)
		}
		return nil
	},
}

func init() {
	graphCmd.PersistentFlags().StringVar(&graphDocsFile, "docs", "", "path to a JSON array of {id,title,body,tags} documents")
	graphCmd.PersistentFlags().StringVar(&graphRoleName, "role", "default", "role name the graph is scoped to")
	graphCmd.MarkPersistentFlagRequired("docs")

	graphCmd.AddCommand(graphQueryCmd)
	graphCmd.AddCommand(graphRankCmd)
}
