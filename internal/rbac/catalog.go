package rbac

import (
	"strings"
	"time"
)

// Role identifiers seeded at first initialisation.
const (
	RoleOwner      = "owner"
	RoleManager    = "manager"
	RoleAccountant = "accountant"
	RoleCashier    = "cashier"
	RoleAuditor    = "auditor"
	RoleSysadmin   = "sysadmin"
)

func perm(id, name, nameID, desc, descID string, conditions ...string) Permission {
	resource, action, _ := strings.Cut(id, ".")
	return Permission{
		ID:            id,
		Resource:      resource,
		Action:        action,
		Name:          name,
		NameID:        nameID,
		Description:   desc,
		DescriptionID: descID,
		Conditions:    conditions,
	}
}

// BuiltinPermissions returns the full permission catalog. The catalog is
// seeded before the roles so every permission id referenced by a built-in
// role already exists.
func BuiltinPermissions() []Permission {
	return []Permission{
		// Inventory
		perm("inventory.view", "View Inventory", "Lihat Inventaris", "View parts stock and locations", "Melihat stok dan lokasi suku cadang"),
		perm("inventory.create", "Add Inventory", "Tambah Inventaris", "Register new parts", "Mendaftarkan suku cadang baru"),
		perm("inventory.edit", "Edit Inventory", "Ubah Inventaris", "Update part details and pricing", "Memperbarui detail dan harga suku cadang"),
		perm("inventory.delete", "Delete Inventory", "Hapus Inventaris", "Remove parts from the catalog", "Menghapus suku cadang dari katalog"),
		perm("inventory.adjust", "Adjust Stock", "Penyesuaian Stok", "Post stock adjustments", "Mencatat penyesuaian stok", "stock_opname"),
		// Sales / POS
		perm("sales.view", "View Sales", "Lihat Penjualan", "View sales transactions", "Melihat transaksi penjualan"),
		perm("sales.create", "Create Sale", "Buat Penjualan", "Record point-of-sale transactions", "Mencatat transaksi kasir"),
		perm("sales.refund", "Refund Sale", "Retur Penjualan", "Issue refunds for sales", "Memproses retur penjualan", "same_day"),
		perm("sales.report", "Sales Reports", "Laporan Penjualan", "View sales reporting", "Melihat laporan penjualan"),
		// Purchasing
		perm("purchases.view", "View Purchases", "Lihat Pembelian", "View purchase orders", "Melihat pesanan pembelian"),
		perm("purchases.create", "Create Purchase", "Buat Pembelian", "Create purchase orders", "Membuat pesanan pembelian"),
		perm("purchases.receive", "Receive Purchase", "Terima Pembelian", "Receive goods against purchase orders", "Menerima barang dari pesanan pembelian"),
		// Customers
		perm("customers.view", "View Customers", "Lihat Pelanggan", "View customer records", "Melihat data pelanggan"),
		perm("customers.create", "Create Customer", "Tambah Pelanggan", "Register new customers", "Mendaftarkan pelanggan baru"),
		perm("customers.edit", "Edit Customer", "Ubah Pelanggan", "Update customer records", "Memperbarui data pelanggan"),
		perm("customers.delete", "Delete Customer", "Hapus Pelanggan", "Remove customer records", "Menghapus data pelanggan"),
		// Suppliers
		perm("suppliers.view", "View Suppliers", "Lihat Pemasok", "View supplier records", "Melihat data pemasok"),
		perm("suppliers.create", "Create Supplier", "Tambah Pemasok", "Register new suppliers", "Mendaftarkan pemasok baru"),
		perm("suppliers.edit", "Edit Supplier", "Ubah Pemasok", "Update supplier records", "Memperbarui data pemasok"),
		// Expenses
		perm("expenses.view", "View Expenses", "Lihat Pengeluaran", "View expense entries", "Melihat catatan pengeluaran"),
		perm("expenses.create", "Create Expense", "Catat Pengeluaran", "Record expense entries", "Mencatat pengeluaran"),
		// Reports
		perm("reports.view", "View Reports", "Lihat Laporan", "Access business reports", "Mengakses laporan usaha"),
		perm("reports.export", "Export Reports", "Ekspor Laporan", "Export reports to file", "Mengekspor laporan ke berkas"),
		// Users
		perm("users.view", "View Users", "Lihat Pengguna", "View user accounts", "Melihat akun pengguna"),
		perm("users.create", "Create User", "Tambah Pengguna", "Create user accounts", "Membuat akun pengguna"),
		perm("users.edit", "Edit User", "Ubah Pengguna", "Update user accounts", "Memperbarui akun pengguna"),
		perm("users.delete", "Delete User", "Hapus Pengguna", "Remove user accounts", "Menghapus akun pengguna"),
		// Roles
		perm("roles.view", "View Roles", "Lihat Peran", "View role configuration", "Melihat konfigurasi peran"),
		perm("roles.edit", "Edit Roles", "Ubah Peran", "Manage role configuration", "Mengelola konfigurasi peran"),
		// Backup
		perm("backup.create", "Create Backup", "Buat Cadangan", "Create data backups", "Membuat cadangan data"),
		perm("backup.restore", "Restore Backup", "Pulihkan Cadangan", "Restore from a backup", "Memulihkan data dari cadangan"),
		perm("backup.delete", "Delete Backup", "Hapus Cadangan", "Delete stored backups", "Menghapus cadangan tersimpan"),
		// Settings
		perm("settings.view", "View Settings", "Lihat Pengaturan", "View shop settings", "Melihat pengaturan toko"),
		perm("settings.edit", "Edit Settings", "Ubah Pengaturan", "Manage shop settings", "Mengelola pengaturan toko"),
		// Audit
		perm("audit.view", "View Audit Log", "Lihat Log Audit", "View the audit trail", "Melihat jejak audit"),
		// Training
		perm("training.view", "View Training", "Lihat Pelatihan", "View training material and progress", "Melihat materi dan progres pelatihan"),
		perm("training.create", "Create Training", "Buat Pelatihan", "Author training material", "Menyusun materi pelatihan"),
		perm("training.award", "Award Training", "Beri Sertifikat", "Award training certifications", "Memberikan sertifikasi pelatihan", "certified_trainer"),
	}
}

// BuiltinRoles returns the six system roles. The owner gets the whole
// catalog, the manager everything except a small exclusion list, the rest
// carry curated fixed permission lists.
func BuiltinRoles(now time.Time) []Role {
	all := make([]string, 0, len(BuiltinPermissions()))
	for _, p := range BuiltinPermissions() {
		all = append(all, p.ID)
	}
	managerExcluded := map[string]struct{}{
		"users.delete":   {},
		"backup.delete":  {},
		"training.award": {},
	}
	manager := make([]string, 0, len(all))
	for _, id := range all {
		if _, ok := managerExcluded[id]; ok {
			continue
		}
		manager = append(manager, id)
	}
	role := func(id, name, nameID, desc, descID string, permIDs []string) Role {
		return Role{
			ID:            id,
			Name:          name,
			NameID:        nameID,
			Description:   desc,
			DescriptionID: descID,
			PermissionIDs: permIDs,
			IsSystemRole:  true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	return []Role{
		role(RoleOwner, "Owner", "Pemilik",
			"Full access to every module", "Akses penuh ke semua modul", all),
		role(RoleManager, "Manager", "Manajer",
			"Day-to-day management without destructive admin rights", "Pengelolaan harian tanpa hak admin destruktif", manager),
		role(RoleAccountant, "Accountant", "Akuntan",
			"Financial records and reporting", "Catatan keuangan dan pelaporan", []string{
				"sales.view", "sales.report",
				"purchases.view",
				"expenses.view", "expenses.create",
				"reports.view", "reports.export",
				"inventory.view",
				"customers.view",
				"suppliers.view",
				"audit.view",
			}),
		role(RoleCashier, "Cashier", "Kasir",
			"Point of sale with limited customer access", "Kasir dengan akses pelanggan terbatas", []string{
				"sales.view", "sales.create",
				"customers.view", "customers.create",
				"inventory.view",
				"training.view",
			}),
		role(RoleAuditor, "Auditor", "Auditor",
			"Read-only access across resources", "Akses baca di semua sumber daya", []string{
				"inventory.view",
				"sales.view", "sales.report",
				"purchases.view",
				"customers.view",
				"suppliers.view",
				"expenses.view",
				"reports.view", "reports.export",
				"users.view",
				"roles.view",
				"settings.view",
				"audit.view",
				"training.view",
			}),
		role(RoleSysadmin, "System Administrator", "Administrator Sistem",
			"User, backup and system administration", "Administrasi pengguna, cadangan dan sistem", []string{
				"users.view", "users.create", "users.edit", "users.delete",
				"roles.view", "roles.edit",
				"settings.view", "settings.edit",
				"backup.create", "backup.restore", "backup.delete",
				"audit.view",
			}),
	}
}
