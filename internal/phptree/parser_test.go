package phptree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/phpref/internal/errors"
)

const sampleSource = `<?php

namespace App\Services;

use App\Models\User;
use App\Contracts\MailerInterface as Mailer;
use App\Support\{Arr, Str};

class UserService extends BaseService implements MailerInterface
{
    private User $current;

    public static function make(): UserService
    {
        return new UserService();
    }

    public function notify(User $user, string $subject): void
    {
        $mailer = new Mailer();
        $mailer->send($subject);
        Str::upper($subject);
        $copy = $mailer;
        $this->current = $user;
    }
}
`

func parseSample(t *testing.T) *Tree {
	t.Helper()
	tree, err := NewParser().Parse([]byte(sampleSource), "sample.php")
	require.NoError(t, err)
	return tree
}

func TestParseNamespaceAndImports(t *testing.T) {
	tree := parseSample(t)

	assert.Equal(t, "App\\Services", tree.DeclaredNamespace())

	table := tree.ImportTable()
	require.Contains(t, table, "User")
	assert.Equal(t, "App\\Models\\User", table["User"].FQN)

	require.Contains(t, table, "Mailer", "alias binds the aliased short name")
	assert.Equal(t, "App\\Contracts\\MailerInterface", table["Mailer"].FQN)
	_, bound := table["MailerInterface"]
	assert.False(t, bound, "aliased import must not bind its original short name")

	require.Contains(t, table, "Arr")
	assert.Equal(t, "App\\Support\\Arr", table["Arr"].FQN)
	require.Contains(t, table, "Str")
	assert.Equal(t, "App\\Support\\Str", table["Str"].FQN)
}

func TestParseClassShape(t *testing.T) {
	tree := parseSample(t)

	var class *Node
	Walk(tree.Root, func(n *Node) bool {
		if n.Kind == KindClass {
			class = n
			return false
		}
		return true
	})
	require.NotNil(t, class)

	assert.Equal(t, "UserService", class.Name)
	assert.Equal(t, "BaseService", class.Extends)
	assert.Equal(t, []string{"MailerInterface"}, class.Implements)

	var methods []*Node
	var props []*Node
	for _, member := range class.Body {
		switch member.Kind {
		case KindMethod:
			methods = append(methods, member)
		case KindProperty:
			props = append(props, member)
		}
	}
	require.Len(t, methods, 2)
	require.Len(t, props, 1)

	assert.Equal(t, "$current", props[0].Name)
	assert.Equal(t, "User", props[0].TypeHint)

	make := methods[0]
	assert.Equal(t, "make", make.Name)
	assert.True(t, make.Static)
	assert.Equal(t, "UserService", make.ReturnType)

	notify := methods[1]
	assert.Equal(t, "notify", notify.Name)
	assert.False(t, notify.Static)
	require.Len(t, notify.Params, 2)
	assert.Equal(t, "$user", notify.Params[0].Name)
	assert.Equal(t, "User", notify.Params[0].TypeHint)
	assert.Equal(t, "$subject", notify.Params[1].Name)
	assert.Equal(t, "", notify.Params[1].TypeHint, "primitive hints carry no class name")
}

func TestParseExpressions(t *testing.T) {
	tree := parseSample(t)

	var news, memberCalls, scopedCalls []*Node
	Walk(tree.Root, func(n *Node) bool {
		switch n.Kind {
		case KindNew:
			news = append(news, n)
		case KindMemberCall:
			memberCalls = append(memberCalls, n)
		case KindScopedCall:
			scopedCalls = append(scopedCalls, n)
		}
		return true
	})

	names := func(nodes []*Node) []string {
		out := make([]string, len(nodes))
		for i, n := range nodes {
			out[i] = n.Name
		}
		return out
	}
	assert.ElementsMatch(t, []string{"UserService", "Mailer"}, names(news))

	require.Len(t, memberCalls, 1)
	assert.Equal(t, "send", memberCalls[0].Name)
	require.NotNil(t, memberCalls[0].Object)
	assert.Equal(t, KindVariable, memberCalls[0].Object.Kind)
	assert.Equal(t, "$mailer", memberCalls[0].Object.Name)

	require.Len(t, scopedCalls, 1)
	assert.Equal(t, "upper", scopedCalls[0].Name)
	require.NotNil(t, scopedCalls[0].Object)
	assert.Equal(t, "Str", scopedCalls[0].Object.Name)
}

func TestParsePositionsAreOneBasedLines(t *testing.T) {
	tree := parseSample(t)

	require.NotNil(t, tree.Namespace)
	assert.Equal(t, 3, tree.Namespace.NameSpan.Start.Line)
	// "namespace " is ten bytes.
	assert.Equal(t, 10, tree.Namespace.NameSpan.Start.Column)
}

func TestParseMalformedSourceFails(t *testing.T) {
	_, err := NewParser().Parse([]byte("<?php class {"), "broken.php")
	require.Error(t, err)
	assert.True(t, errors.IsParseFailure(err))
}

func TestParseDoesNotMutateInput(t *testing.T) {
	content := []byte(sampleSource)
	before := string(content)
	_, err := NewParser().Parse(content, "sample.php")
	require.NoError(t, err)
	assert.Equal(t, before, string(content))
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "User", ShortName("App\\Models\\User"))
	assert.Equal(t, "User", ShortName("\\App\\Models\\User"))
	assert.Equal(t, "User", ShortName("User"))
}
