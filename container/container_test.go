package container_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/flaphl/injection/container"
	"github.com/flaphl/injection/params"
)

// 测试类型
type Database struct {
	DSN string
}

type Mailer struct {
	From string
}

type Service struct {
	DB     *Database `inject:"db"`
	Mailer *Mailer   `inject:"mailer,optional"`
	Name   string
}

func TestBindTransient(t *testing.T) {
	c := container.New()
	c.Bind("db", func(c *container.Container, _ map[string]any) (any, error) {
		return &Database{DSN: "dsn"}, nil
	})

	a, err := c.Make("db")
	if err != nil {
		t.Fatalf("Make failed: %v", err)
	}
	b, _ := c.Make("db")
	if a == b {
		t.Fatal("transient binding must produce a fresh instance per Make")
	}
}

func TestSingletonShared(t *testing.T) {
	c := container.New()
	calls := 0
	c.Singleton("db", func(c *container.Container, _ map[string]any) (any, error) {
		calls++
		return &Database{DSN: "dsn"}, nil
	})

	a, _ := c.Make("db")
	b, _ := c.Make("db")
	if a != b {
		t.Fatal("singleton must cache the first instance")
	}
	if calls != 1 {
		t.Fatalf("factory called %d times, expected 1", calls)
	}
	if !c.Resolved("db") {
		t.Fatal("expected db to be marked resolved")
	}
}

func TestRebindClearsInstance(t *testing.T) {
	c := container.New()
	c.Singleton("db", func(c *container.Container, _ map[string]any) (any, error) {
		return &Database{DSN: "old"}, nil
	})
	first, _ := c.Make("db")

	// 重新绑定后旧缓存必须失效
	c.Singleton("db", func(c *container.Container, _ map[string]any) (any, error) {
		return &Database{DSN: "new"}, nil
	})
	second, _ := c.Make("db")
	if first == second {
		t.Fatal("rebinding must invalidate the cached instance")
	}
	if second.(*Database).DSN != "new" {
		t.Fatalf("expected new binding to win, got %v", second)
	}
}

func TestInstanceWins(t *testing.T) {
	c := container.New()
	c.Singleton("db", func(c *container.Container, _ map[string]any) (any, error) {
		return &Database{DSN: "factory"}, nil
	})

	pinned := &Database{DSN: "pinned"}
	c.Instance("db", pinned)

	got, err := c.Get("db")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != pinned {
		t.Fatal("Instance must bypass the factory")
	}
}

func TestUnbind(t *testing.T) {
	c := container.New()
	c.Instance("db", &Database{})
	c.Unbind("db")
	if c.Has("db") {
		t.Fatal("expected db to be gone after Unbind")
	}
	if _, err := c.Get("db"); err == nil {
		t.Fatal("expected resolution to fail after Unbind")
	}
}

func TestNotFound(t *testing.T) {
	c := container.New()
	_, err := c.Get("ghost")
	var notFound *container.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.ID != "ghost" {
		t.Fatalf("expected id 'ghost', got %q", notFound.ID)
	}
}

func TestCircularReference(t *testing.T) {
	c := container.New()
	c.Bind("a", func(c *container.Container, _ map[string]any) (any, error) {
		return c.Get("b")
	})
	c.Bind("b", func(c *container.Container, _ map[string]any) (any, error) {
		return c.Get("a")
	})

	_, err := c.Get("a")
	var circular *container.CircularReferenceError
	if !errors.As(err, &circular) {
		t.Fatalf("expected CircularReferenceError, got %v", err)
	}

	// 完整路径以 " -> " 连接，末尾是重复的 id
	want := []string{"a", "b", "a"}
	if len(circular.Path) != len(want) {
		t.Fatalf("unexpected path %v", circular.Path)
	}
	for i := range want {
		if circular.Path[i] != want[i] {
			t.Fatalf("expected path %v, got %v", want, circular.Path)
		}
	}
	if !strings.Contains(circular.Error(), "a -> b -> a") {
		t.Fatalf("unexpected message %q", circular.Error())
	}
}

func TestSelfCircularReference(t *testing.T) {
	c := container.New()
	c.Bind("loop", func(c *container.Container, _ map[string]any) (any, error) {
		return c.Get("loop")
	})

	_, err := c.Get("loop")
	var circular *container.CircularReferenceError
	if !errors.As(err, &circular) {
		t.Fatalf("expected CircularReferenceError, got %v", err)
	}
}

func TestAlias(t *testing.T) {
	c := container.New()
	c.Singleton("database.connection", func(c *container.Container, _ map[string]any) (any, error) {
		return &Database{DSN: "dsn"}, nil
	})
	c.Alias("database.connection", "db")

	a, err := c.Get("db")
	if err != nil {
		t.Fatalf("Get via alias failed: %v", err)
	}
	b, _ := c.Get("database.connection")
	if a != b {
		t.Fatal("alias must resolve to the same singleton")
	}
}

func TestSelfAliasPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on self alias")
		}
	}()
	container.New().Alias("db", "db")
}

func TestExtend(t *testing.T) {
	c := container.New()
	c.Singleton("mailer", func(c *container.Container, _ map[string]any) (any, error) {
		return &Mailer{From: "base"}, nil
	})
	c.Extend("mailer", func(instance any, c *container.Container) any {
		instance.(*Mailer).From = "decorated"
		return instance
	})

	got, _ := c.Get("mailer")
	if got.(*Mailer).From != "decorated" {
		t.Fatalf("expected decorated instance, got %v", got)
	}
}

func TestExtendCachedInstance(t *testing.T) {
	c := container.New()
	c.Singleton("mailer", func(c *container.Container, _ map[string]any) (any, error) {
		return &Mailer{From: "base"}, nil
	})
	first, _ := c.Get("mailer")

	// 单例已缓存时装饰器就地重包
	c.Extend("mailer", func(instance any, c *container.Container) any {
		instance.(*Mailer).From = "rewrapped"
		return instance
	})
	if first.(*Mailer).From != "rewrapped" {
		t.Fatal("Extend must rewrap an already cached singleton")
	}
}

func TestTags(t *testing.T) {
	c := container.New()
	c.Instance("report.daily", "daily")
	c.Instance("report.weekly", "weekly")
	c.Tag([]string{"report.daily", "report.weekly"}, "reports")
	c.Tag([]string{"report.daily"}, "reports") // 去重

	ids := c.TaggedIDs("reports")
	if len(ids) != 2 {
		t.Fatalf("expected 2 tagged ids, got %v", ids)
	}

	all, err := c.Tagged("reports")
	if err != nil {
		t.Fatalf("Tagged failed: %v", err)
	}
	if len(all) != 2 || all[0] != "daily" || all[1] != "weekly" {
		t.Fatalf("unexpected tagged services %v", all)
	}
}

func TestParameters(t *testing.T) {
	c := container.New()
	c.SetParameter("app.name", "demo")

	v, err := c.GetParameter("app.name")
	if err != nil || v != "demo" {
		t.Fatalf("expected demo, got %v (err %v)", v, err)
	}
	if !c.HasParameter("app.name") {
		t.Fatal("expected parameter to exist")
	}
	if v := c.GetParameterDefault("nope", 7); v != 7 {
		t.Fatalf("expected default 7, got %v", v)
	}

	var notFound *params.ParameterNotFoundError
	if _, err := c.GetParameter("nope"); !errors.As(err, &notFound) {
		t.Fatalf("expected ParameterNotFoundError, got %v", err)
	}
}

func TestForgetInstance(t *testing.T) {
	c := container.New()
	calls := 0
	c.Singleton("db", func(c *container.Container, _ map[string]any) (any, error) {
		calls++
		return &Database{}, nil
	})

	c.Get("db")
	c.ForgetInstance("db")
	c.Get("db")
	if calls != 2 {
		t.Fatalf("expected factory to rerun after ForgetInstance, got %d calls", calls)
	}
}

func TestFlushKeepsTypes(t *testing.T) {
	c := container.New()
	if err := c.RegisterType("database", &Database{}); err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	c.Instance("db", &Database{})
	c.SetParameter("k", 1)

	c.Flush()
	if c.HasParameter("k") {
		t.Fatal("expected parameters to be cleared")
	}
	if !c.Types().Has("database") {
		t.Fatal("type registry must survive Flush")
	}
}

func TestRegisteredClassResolution(t *testing.T) {
	c := container.New()
	if err := c.RegisterType("database", func() *Database {
		return &Database{DSN: "from-ctor"}
	}); err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}

	// 绑定 concrete 为类名
	c.Singleton("db", "database")
	got, err := c.Get("db")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.(*Database).DSN != "from-ctor" {
		t.Fatalf("unexpected instance %v", got)
	}

	// 注册过的类名本身也可直接作为服务 id（隐式自动绑定，瞬态）
	a, err := c.Get("database")
	if err != nil {
		t.Fatalf("implicit resolution failed: %v", err)
	}
	b, _ := c.Get("database")
	if a == b {
		t.Fatal("implicit class resolution must be transient")
	}
}

func TestStructFieldInjection(t *testing.T) {
	c := container.New()
	c.Instance("db", &Database{DSN: "dsn"})
	if err := c.RegisterType("service", &Service{}); err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	c.Singleton("svc", "service")

	got, err := c.Get("svc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	svc := got.(*Service)
	if svc.DB == nil || svc.DB.DSN != "dsn" {
		t.Fatalf("expected db injection, got %+v", svc)
	}
	// mailer 未注册，optional 字段保持零值而不是报错
	if svc.Mailer != nil {
		t.Fatal("optional missing dependency must stay nil")
	}
}

func TestMakeWithFieldOverride(t *testing.T) {
	c := container.New()
	c.Instance("db", &Database{DSN: "dsn"})
	if err := c.RegisterType("service", &Service{}); err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	c.Bind("svc", "service")

	got, err := c.MakeWith("svc", map[string]any{
		"Name":   "custom",
		"Mailer": &Mailer{From: "override"},
	})
	if err != nil {
		t.Fatalf("MakeWith failed: %v", err)
	}
	svc := got.(*Service)
	if svc.Name != "custom" {
		t.Fatalf("expected field override, got %q", svc.Name)
	}
	if svc.Mailer == nil || svc.Mailer.From != "override" {
		t.Fatalf("expected explicit mailer, got %+v", svc.Mailer)
	}
}

func TestAutowireExisting(t *testing.T) {
	c := container.New()
	c.Instance("db", &Database{DSN: "dsn"})

	svc := &Service{}
	if err := c.Autowire("svc", svc, nil); err != nil {
		t.Fatalf("Autowire failed: %v", err)
	}
	if svc.DB == nil {
		t.Fatal("expected db field to be wired")
	}

	if err := c.Autowire("bad", 42, nil); err == nil {
		t.Fatal("Autowire must reject non struct pointers")
	}
}
