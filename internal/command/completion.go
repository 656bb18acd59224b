package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/tennisbet/internal/meta"
)

const bashCompletionScript = `# bash completion for tennisbet
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_tennisbet()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "odds players matches tables completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local common="--attrs -a --color -c --db --debug --filter -f --force -F --output -o --policy --sort -s --titles -t --tldr"

    case "$cmd" in
        matches)
            local opts="$common --date -d"
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$common"
            ;;
    esac

    case "$prev" in
        --output|-o)
            COMPREPLY=( $(compgen -W "text json raw yaml" -- "$cur") )
            return 0
            ;;
        --policy)
            COMPREPLY=( $(compgen -W "weekly 1h 30m" -- "$cur") )
            return 0
            ;;
        --date|-d)
            COMPREPLY=( $(compgen -W "today yesterday tomorrow" -- "$cur") )
            return 0
            ;;
    esac

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _tennisbet tennisbet
`

const zshCompletionScript = `#compdef tennisbet

_tennisbet() {
  local -a cmds
  cmds=(
    'odds:ATP match odds'
    'players:ranked ATP players'
    'matches:ATP matches of a day'
    'tables:list cached tables'
    'completion:generate shell completion script'
  )

  local -a common
  common=(
  '(-a --attrs)'{-a,--attrs}'[attributes to include]:attrs'
  '(-c --color)'{-c,--color}'[enable colored text]'
  '--db[table store DSN]:dsn:_files'
  '--debug[log at debug level]'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-F --force)'{-F,--force}'[recompute even if fresh]'
  '(-o --output)'{-o,--output}'[output format]:format:(text json raw yaml)'
  '--policy[staleness policy]:policy:(weekly 1h 30m)'
  '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
  '(-t --titles)'{-t,--titles}'[show titles]'
  '--tldr[show tldr page]'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'tennisbet commands' cmds
    return
  fi

  case $words[2] in
    matches)
      _arguments -C \
        $common \
        '(-d --date)'{-d,--date}'[day to list]:date:(today yesterday tomorrow)'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
    *)
      _arguments -C $common
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _tennisbet tennisbet
`

// CompletionCommandAction prints the completion script for the named shell,
// or for $SHELL when none is given.
func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	w := cmd.Root().Writer
	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	switch {
	case strings.HasSuffix(shell, "zsh"):
		fmt.Fprint(w, zshCompletionScript)
	case strings.HasSuffix(shell, "bash"):
		fmt.Fprint(w, bashCompletionScript)
	default:
		fmt.Fprintln(cmd.Root().ErrWriter, "usage: tennisbet completion [bash|zsh]")
	}
	return nil
}

func CompletionCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "tennisbet completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
