package sqlinline

const QRunInsert = `--sql 9a4d85f6-a107-49f6-a9dd-001ee0391b1f
insert into generation_runs (id, state, request_json, created_at)
values ($1::uuid, $2::text, $3::jsonb, now());
`

const QRunMarkRunning = `--sql 0978f68e-07ab-4122-ad46-cbd2229661c3
update generation_runs
set state = 'running', started_at = now()
where id = $1::uuid;
`

const QRunComplete = `--sql 31b8730a-1703-4a59-89d8-19abaed6bc9c
update generation_runs
set state = $2::text,
    outcome_json = $3::jsonb,
    error_message = $4::text,
    finished_at = now()
where id = $1::uuid;
`

const QRunByID = `--sql 698c168c-f170-4443-ae2e-78af0feb41eb
select id, state, request_json, outcome_json, coalesce(error_message, ''), created_at, started_at, finished_at
from generation_runs
where id = $1::uuid
limit 1;
`

const QAssetInsert = `--sql 9c581779-c05b-4d08-9051-8ac805e56c88
insert into generation_assets (id, run_id, unit_index, prompt, category, local_key, remote_ref, remote_stored, created_at)
values (gen_random_uuid(), $1::uuid, $2::int, $3::text, $4::text, $5::text, $6::text, $7::boolean, now());
`
