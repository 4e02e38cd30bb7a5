/*
Package trash implements the reversible soft-delete lifecycle of cataloged
media.

Trashing moves a file and its sidecars (prompt, workflow and tag siblings
plus the edit sidecar) under the trash directory of the media root,
mirroring the original subfolder. When the mirrored name is taken the
file becomes name_1.ext, name_2.ext and so on, and its sidecars follow
the same renamed base. The record keeps its identity: it is flagged
trashed, remembers its original path and takes the trash location.

Restore reverses the move unless the original path is occupied, which is
reported as a conflict. PermanentDelete only acts on live records. Every
batch reports a per-item result and never stops at the first failure.
*/
package trash
