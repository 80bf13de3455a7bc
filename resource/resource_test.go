package resource

import "testing"

func TestEqualityAcrossVariants(t *testing.T) {
	if !NewLocalMachine().Equal(NewLocalMachine()) {
		t.Error("two LocalMachine resources should be equal")
	}
	if NewProcess(1).Equal(NewProcess(2)) {
		t.Error("different pids should not be equal")
	}
	if NewProcess(1).Equal(NewLocalMachine()) {
		t.Error("resources of a different kind should not be equal")
	}
	if !NewCustom("k8s-pod", "abc").Equal(NewCustom("k8s-pod", "abc")) {
		t.Error("identical custom resources should be equal")
	}
	if NewCustom("k8s-pod", "abc").Equal(NewCustom("oar-job", "abc")) {
		t.Error("custom resources with different kinds should not be equal")
	}
}

func TestAccessors(t *testing.T) {
	p := NewProcess(42)
	if p.Kind() != Process || p.Pid() != 42 {
		t.Errorf("unexpected process resource: %+v", p)
	}
	cg := NewControlGroup("/sys/fs/cgroup/mine")
	if cg.Kind() != ControlGroup || cg.Path() != "/sys/fs/cgroup/mine" {
		t.Errorf("unexpected control group resource: %+v", cg)
	}
	g := NewGpu("0000:01:00.0")
	if g.Kind() != Gpu || g.BusID() != "0000:01:00.0" {
		t.Errorf("unexpected gpu resource: %+v", g)
	}
}

func TestUsableAsMapKey(t *testing.T) {
	m := map[ID]int{}
	m[NewCpuCore(0)] = 1
	m[NewCpuCore(1)] = 2
	if m[NewCpuCore(0)] != 1 || m[NewCpuCore(1)] != 2 {
		t.Fatal("ID should be usable as a map key")
	}
}
