package agent

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt renders the fixed instructions sent with every model turn.
func BuildSystemPrompt(task Task) string {
	if task.SystemPrompt != "" {
		return task.SystemPrompt
	}

	return fmt.Sprintf(`You are an autonomous agent executing a skill from a developer's toolkit.

SKILL DEFINITION:
%s

You have access to tools to read, write, list, and search files in the repository, and to run shell commands in it.

IMPORTANT INSTRUCTIONS:
1. Use the tools to explore the repository and understand its structure
2. Follow the skill definition carefully to complete the task
3. Create all necessary files and directories as specified in the skill
4. When you are done, simply stop - do not ask for confirmation
5. Work autonomously - you have full authority to create and modify files

Be thorough and complete the entire task as defined in the skill.`, task.Definition)
}

// BuildInitialMessage renders the first user turn of a run.
func BuildInitialMessage(task Task) string {
	parts := []string{
		fmt.Sprintf("Please execute the '%s' skill on this repository.", task.Name),
		"",
		fmt.Sprintf("Repository: %s", task.RepoName),
		fmt.Sprintf("Path: %s", task.RepoPath),
	}

	if task.RepoContext != "" {
		parts = append(parts, "", "Repository Context:", task.RepoContext)
	}

	if task.Template != "" {
		parts = append(parts, "", "Template/Structure Reference:", task.Template)
	}

	if task.ExpectedOutput != "" {
		parts = append(parts, "", "Expected Output: "+task.ExpectedOutput)
	}

	parts = append(parts,
		"",
		"Use the available tools to explore the repository and complete the task.",
		"Create all necessary files as specified in the skill definition.",
	)

	return strings.Join(parts, "\n")
}
