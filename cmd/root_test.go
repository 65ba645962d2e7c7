package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subcommandNames(c *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, sub := range c.Commands() {
		names[sub.Name()] = true
	}
	return names
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(rootCmd)

	expected := []string{"discover", "schedule", "snapshot", "insights", "history", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "idea-scout", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestDiscoverCommand_Flags(t *testing.T) {
	assert.True(t, subcommandNames(discoverCmd)["run"])

	flag := discoverRunCmd.Flags().Lookup("ideas")
	require.NotNil(t, flag, "discover run should have --ideas flag")
	assert.Equal(t, "", flag.DefValue)
}

func TestScheduleCommand_Flags(t *testing.T) {
	flag := scheduleCmd.Flags().Lookup("addr")
	require.NotNil(t, flag, "schedule command should have --addr flag")
	assert.Equal(t, "", flag.DefValue)
}

func TestAggregateCommands_Flags(t *testing.T) {
	flag := snapshotCmd.Flags().Lookup("window")
	require.NotNil(t, flag)
	assert.Equal(t, "hourly", flag.DefValue)

	names := subcommandNames(insightsCmd)
	assert.True(t, names["list"])
	assert.True(t, names["generate"])

	flag = insightsListCmd.Flags().Lookup("status")
	require.NotNil(t, flag)
	assert.Equal(t, "new", flag.DefValue)

	assert.True(t, subcommandNames(historyCmd)["stats"])
	flag = historyStatsCmd.Flags().Lookup("days")
	require.NotNil(t, flag)
	assert.Equal(t, "7", flag.DefValue)
}
