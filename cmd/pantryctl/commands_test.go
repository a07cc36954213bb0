package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name {
			return sub
		}
	}
	return nil
}

func TestCategoriesCmd(t *testing.T) {
	cmd := categoriesCmd()
	assert.NotNil(t, cmd)

	for _, name := range []string{"list", "add", "rm", "seed"} {
		assert.NotNil(t, findSubcommand(cmd, name), "%s subcommand should exist", name)
	}

	add := findSubcommand(cmd, "add")
	require.NotNil(t, add)
	flag := add.Flag("color")
	assert.NotNil(t, flag, "color flag should exist")
	assert.Equal(t, "", flag.DefValue)
}

func TestItemsCmd(t *testing.T) {
	cmd := itemsCmd()

	add := findSubcommand(cmd, "add")
	require.NotNil(t, add)
	assert.Equal(t, "1", add.Flag("amount").DefValue, "default amount should be 1")
	assert.NotNil(t, add.Flag("category"))
	assert.Equal(t, "false", add.Flag("persist").DefValue)

	search := findSubcommand(cmd, "search")
	require.NotNil(t, search)
	assert.NotNil(t, search.Flag("category"))
}

func TestRecognizeCmd(t *testing.T) {
	cmd := recognizeCmd()
	assert.Equal(t, "false", cmd.Flag("confirm").DefValue)
	assert.Equal(t, "false", cmd.Flag("persist").DefValue)
}

func withServer(t *testing.T, h http.Handler) {
	t.Helper()
	srv := httptest.NewServer(h)
	prev := viper.GetString("server")
	viper.Set("server", srv.URL)
	t.Cleanup(func() {
		viper.Set("server", prev)
		srv.Close()
	})
}

func TestListCategoriesCmd_PrintsTable(t *testing.T) {
	withServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"categories":[{"name":"Dairy","color":"hsl(50, 70%, 80%)"},{"name":"Meat","color":"not-a-color"}]}`))
	}))

	var out bytes.Buffer
	cmd := listCategoriesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Dairy")
	assert.Contains(t, out.String(), "hsl(50, 70%, 80%)")
	assert.Contains(t, out.String(), "not-a-color")
}

func TestListCategoriesCmd_Empty(t *testing.T) {
	withServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"categories":[]}`))
	}))

	var out bytes.Buffer
	cmd := listCategoriesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "No categories found")
}

func TestAddItemCmd_ReportsAccumulate(t *testing.T) {
	withServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"action":"accumulate","item":{"id":"i1","name":"Milk","amount":"5","categories":[]}}`))
	}))

	var out bytes.Buffer
	cmd := addItemCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"Milk", "--amount", "3"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Updated")
	assert.Contains(t, out.String(), "Milk (5)")
}

func TestRecognizeCmd_ReadsStdin(t *testing.T) {
	withServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"batch":{"id":"b9","items":[{"name":"Apple","amount":"1","categories":[]}],"createdCategories":[],"dropped":0}}`))
	}))

	var out bytes.Buffer
	cmd := recognizeCmd()
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(`[{"name":"Apple"}]`))
	cmd.SetArgs([]string{"-"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "b9")
	assert.Contains(t, out.String(), "Not saved")
}

func TestSwatch_FallsBackToName(t *testing.T) {
	assert.Equal(t, "Misc", swatch(category{Name: "Misc", Color: "???"}))
	assert.Contains(t, swatch(category{Name: "Fruit", Color: "hsl(10, 70%, 80%)"}), "Fruit")
}
