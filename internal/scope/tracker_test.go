package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/phpref/internal/phptree"
)

func parse(t *testing.T, source string) *phptree.Tree {
	t.Helper()
	tree, err := phptree.NewParser().Parse([]byte(source), "test.php")
	require.NoError(t, err)
	return tree
}

func userControllerTarget() Target {
	return Target{
		ClassName: "UserController",
		ClassFQN:  "App\\Http\\UserController",
		Method:    "handle",
	}
}

func TestThisReceiverInsideTargetClass(t *testing.T) {
	tree := parse(t, `<?php
namespace App\Http;

class UserController
{
    public function handle(): void {}

    public function run(): void
    {
        $this->handle();
    }
}

class OrderController
{
    public function handle(): void {}

    public function run(): void
    {
        $this->handle();
    }
}
`)

	sites := FindCallSites(tree, userControllerTarget())
	require.Len(t, sites, 1, "only the call inside UserController is accepted")
	assert.Equal(t, 10, sites[0].Span.Start.Line)
}

func TestTrackedVariableReceivers(t *testing.T) {
	tree := parse(t, `<?php
namespace App;

use App\Http\UserController;
use App\Http\OrderController;

class Runner
{
    public function go(UserController $u, OrderController $o): void
    {
        $u->handle();
        $o->handle();

        $fresh = new UserController();
        $fresh->handle();

        $copy = $fresh;
        $copy->handle();

        $fresh = $o;
        $fresh->handle();
    }
}
`)

	sites := FindCallSites(tree, userControllerTarget())
	lines := make([]int, len(sites))
	for i, s := range sites {
		lines[i] = s.Span.Start.Line
	}
	assert.ElementsMatch(t, []int{11, 15, 18}, lines,
		"param hint, fresh new, and copied binding accepted; rebinding invalidates")
}

func TestImportMismatchRejectsShortName(t *testing.T) {
	tree := parse(t, `<?php
namespace App;

use Vendor\Other\UserController;

class Runner
{
    public function go(UserController $u): void
    {
        $u->handle();
    }
}
`)

	sites := FindCallSites(tree, userControllerTarget())
	assert.Empty(t, sites, "short name imported from elsewhere must not match")
}

func TestInlineNewReceiver(t *testing.T) {
	tree := parse(t, `<?php
namespace App\Http;

class Boot
{
    public function run(): void
    {
        (new UserController())->handle();
    }
}
`)

	sites := FindCallSites(tree, userControllerTarget())
	assert.Len(t, sites, 1)
}

func TestChainedReceiverSkipped(t *testing.T) {
	tree := parse(t, `<?php
namespace App\Http;

class Boot
{
    public function run(): void
    {
        $this->factory()->handle();
    }
}
`)

	sites := FindCallSites(tree, userControllerTarget())
	assert.Empty(t, sites, "chained receivers are never guessed")
}

func TestStaticCalls(t *testing.T) {
	tree := parse(t, `<?php
namespace App\Http;

class UserController
{
    public static function handle(): void {}

    public function again(): void
    {
        self::handle();
        static::handle();
        parent::handle();
    }
}

class Elsewhere
{
    public function run(): void
    {
        UserController::handle();
        OrderController::handle();
        self::handle();
    }
}
`)

	sites := FindCallSites(tree, userControllerTarget())
	var static int
	for _, s := range sites {
		if s.Static {
			static++
		}
	}
	assert.Len(t, sites, 3, "self and static inside the target, plus the literal class name")
	assert.Equal(t, 3, static)
}

func TestPropertyTypePropagation(t *testing.T) {
	tree := parse(t, `<?php
namespace App\Http;

class Dispatcher
{
    private UserController $controller;

    public function run(): void
    {
        $c = $this->controller;
        $c->handle();
    }
}
`)

	sites := FindCallSites(tree, userControllerTarget())
	assert.Len(t, sites, 1, "property hint propagates through $this->prop assignment")
}

func TestInterfaceTargetFanOut(t *testing.T) {
	tree := parse(t, `<?php
namespace App;

use App\Log\LoggerInterface;
use App\Log\FileLogger;

class Service
{
    public function run(LoggerInterface $logger): void
    {
        $logger->log('x');
    }

    public function direct(): void
    {
        $l = new FileLogger();
        $l->log('y');
    }
}
`)

	target := Target{
		ClassName:   "LoggerInterface",
		ClassFQN:    "App\\Log\\LoggerInterface",
		IsInterface: true,
		Method:      "log",
		Implementors: map[string]string{
			"FileLogger": "App\\Log\\FileLogger",
		},
	}

	sites := FindCallSites(tree, target)
	assert.Len(t, sites, 2, "interface-typed receiver and implementor instantiation both accepted")
}

func TestThisInsideImplementor(t *testing.T) {
	tree := parse(t, `<?php
namespace App\Log;

class FileLogger implements LoggerInterface
{
    public function log(string $m): void {}

    public function twice(string $m): void
    {
        $this->log($m);
        $this->log($m);
    }
}
`)

	target := Target{
		ClassName:    "LoggerInterface",
		ClassFQN:     "App\\Log\\LoggerInterface",
		IsInterface:  true,
		Method:       "log",
		Implementors: map[string]string{"FileLogger": "App\\Log\\FileLogger"},
	}

	sites := FindCallSites(tree, target)
	assert.Len(t, sites, 2)
}
